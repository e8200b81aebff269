package sol

import (
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Sizes of the token program account layouts.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

// createIdempotent is the associated token account program instruction that
// succeeds when the account already exists.
const createIdempotent = 1

// Instruction is a single program invocation of a transaction.
type Instruction = solana.Instruction

// Transfer moves lamports between two system accounts.
func Transfer(from, to PublicKey, lamports uint64) Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// CreateAccount allocates a new account of space bytes owned by owner and funds it.
func CreateAccount(payer, account, owner PublicKey, lamports, space uint64) Instruction {
	return system.NewCreateAccountInstruction(lamports, space, owner, payer, account).Build()
}

// InitializeMint2 initializes a mint account without the rent sysvar. The freeze
// authority is left unset when freezeAuthority is nil.
func InitializeMint2(mint, mintAuthority PublicKey, freezeAuthority *PublicKey, decimals uint8) Instruction {
	ix := token.NewInitializeMint2InstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(mintAuthority).
		SetMintAccount(mint)
	if freezeAuthority != nil {
		ix.SetFreezeAuthority(*freezeAuthority)
	}

	return ix.Build()
}

// MintTo mints amount base units of mint into destination.
func MintTo(mint, destination, authority PublicKey, amount uint64) Instruction {
	return token.NewMintToInstruction(amount, mint, destination, authority, nil).Build()
}

// TransferChecked moves amount base units of mint between token accounts,
// asserting the mint's decimals.
func TransferChecked(source, mint, destination, owner PublicKey, amount uint64, decimals uint8) Instruction {
	return token.NewTransferCheckedInstruction(amount, decimals, source, mint, destination, owner, nil).Build()
}

// CreateAssociatedTokenAccountIdempotent creates the associated token account of
// owner for mint, succeeding when it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint PublicKey) Instruction {
	create := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build()
	return solana.NewInstruction(create.ProgramID(), create.Accounts(), []byte{createIdempotent})
}
