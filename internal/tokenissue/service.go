// Package tokenissue deploys SPL token mints owned by the master wallet and
// mints their initial supply.
package tokenissue

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/walletkey"
)

// Chain is the subset of the cluster client used to issue tokens.
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, encoded string) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, commitment chain.Commitment) error
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// KeyStore locates and decrypts wallet keys.
type KeyStore interface {
	Find(ctx context.Context, walletID, chain string) (string, error)
	Decrypt(ctx context.Context, blob string) (walletkey.Secret, error)
}

// DeployRequest creates a new mint.
type DeployRequest struct {
	MasterWalletID string `validate:"required"`
	Decimals       uint8  `validate:"max=19"`
}

// MintRequest mints supply of an existing mint to a holder.
type MintRequest struct {
	MasterWalletID string `validate:"required"`
	Mint           string `validate:"required,solana_address"`
	Amount         string `validate:"required,positive_amount"` // display units
	Decimals       uint8  `validate:"max=19"`
	Holder         string `validate:"required,solana_address"`
}

// Service issues tokens.
type Service interface {
	// DeployToken creates and initializes a mint whose mint authority is the
	// master wallet, which also pays rent and fees. It returns the mint address.
	DeployToken(ctx context.Context, req DeployRequest, observer progress.Observer) (string, error)

	// MintInitialSupply mints amount to the holder's associated token account,
	// creating the account when it does not exist.
	MintInitialSupply(ctx context.Context, req MintRequest, observer progress.Observer) error
}

type service struct {
	chain Chain
	keys  KeyStore
}

// Ensure compile-time compliance with the Service interface.
var _ Service = (*service)(nil)

// New builds a token issuer.
func New(c Chain, keys KeyStore) *service {
	return &service{chain: c, keys: keys}
}

// DeployToken implements Service.
func (s *service) DeployToken(ctx context.Context, req DeployRequest, observer progress.Observer) (string, error) {
	observer = progress.OrNop(observer)

	mint, err := s.deploy(ctx, req, observer)
	if err != nil {
		observer.Fail(ctx, err.Error())
		return "", err
	}

	observer.Success(ctx, fmt.Sprintf("Token deployed at %s", mint))
	return mint, nil
}

func (s *service) deploy(ctx context.Context, req DeployRequest, observer progress.Observer) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}

	observer.Step(ctx, "Loading master wallet key")
	master, masterAddress, err := s.loadKey(ctx, req.MasterWalletID)
	if err != nil {
		return "", err
	}

	mintPub, mintKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate mint key: %w", err)
	}
	mint := sol.PublicKeyFromEd25519(mintPub)

	rent, err := s.chain.GetMinimumBalanceForRentExemption(ctx, sol.MintAccountSize)
	if err != nil {
		return "", fmt.Errorf("get mint rent: %w", err)
	}

	observer.Step(ctx, "Creating mint account")
	signature, err := s.submit(ctx, masterAddress, []ed25519.PrivateKey{master, mintKey},
		sol.CreateAccount(masterAddress, mint, sol.TokenProgramID, rent, sol.MintAccountSize),
		sol.InitializeMint2(mint, masterAddress, nil, req.Decimals),
	)
	if err != nil {
		return "", err
	}

	logger.Info(ctx, "token mint deployed",
		"token.mint", mint.String(),
		"token.decimals", req.Decimals,
		"transaction.signature", signature,
	)

	return mint.String(), nil
}

// MintInitialSupply implements Service.
func (s *service) MintInitialSupply(ctx context.Context, req MintRequest, observer progress.Observer) error {
	observer = progress.OrNop(observer)

	signature, err := s.mintSupply(ctx, req, observer)
	if err != nil {
		observer.Fail(ctx, err.Error())
		return err
	}

	observer.Success(ctx, fmt.Sprintf("Minted %s to %s in %s", req.Amount, req.Holder, signature))
	return nil
}

func (s *service) mintSupply(ctx context.Context, req MintRequest, observer progress.Observer) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}

	mint, err := sol.ParsePublicKey(req.Mint)
	if err != nil {
		return "", err
	}

	holder, err := sol.ParsePublicKey(req.Holder)
	if err != nil {
		return "", err
	}

	display, err := sol.ParseAmount(req.Amount)
	if err != nil {
		return "", err
	}

	amount, err := sol.ToBaseUnits(display, req.Decimals)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Loading master wallet key")
	master, masterAddress, err := s.loadKey(ctx, req.MasterWalletID)
	if err != nil {
		return "", err
	}

	ata, err := sol.FindAssociatedTokenAddress(holder, mint)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Minting supply")
	signature, err := s.submit(ctx, masterAddress, []ed25519.PrivateKey{master},
		sol.CreateAssociatedTokenAccountIdempotent(masterAddress, holder, mint),
		sol.MintTo(mint, ata, masterAddress, amount),
	)
	if err != nil {
		return "", err
	}

	logger.Info(ctx, "token supply minted",
		"token.mint", req.Mint,
		"token.account", ata.String(),
		"token.amount", req.Amount,
		"transaction.signature", signature,
	)

	return signature, nil
}

// submit signs, sends and confirms a transaction paid by feePayer.
func (s *service) submit(ctx context.Context, feePayer sol.PublicKey, keys []ed25519.PrivateKey, ixs ...sol.Instruction) (string, error) {
	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := sol.NewTransaction(feePayer, blockhash, ixs...)
	if err != nil {
		return "", err
	}

	if err := tx.Sign(keys...); err != nil {
		return "", err
	}

	encoded, err := tx.Base64()
	if err != nil {
		return "", err
	}

	signature, err := s.chain.SendTransaction(ctx, encoded)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := s.chain.ConfirmTransaction(ctx, signature, chain.Confirmed); err != nil {
		return "", fmt.Errorf("confirm transaction %s: %w", signature, err)
	}

	return signature, nil
}

func (s *service) loadKey(ctx context.Context, walletID string) (ed25519.PrivateKey, sol.PublicKey, error) {
	blob, err := s.keys.Find(ctx, walletID, chain.ID)
	if err != nil {
		return nil, sol.PublicKey{}, fmt.Errorf("find key of wallet %s: %w", walletID, err)
	}

	secret, err := s.keys.Decrypt(ctx, blob)
	if err != nil {
		return nil, sol.PublicKey{}, fmt.Errorf("decrypt key of wallet %s: %w", walletID, err)
	}

	key, err := walletkey.DecodePrivateKey(secret.PrivateKey)
	if err != nil {
		return nil, sol.PublicKey{}, err
	}

	return key, sol.PublicKeyFromEd25519(key.Public().(ed25519.PublicKey)), nil
}
