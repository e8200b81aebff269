package sol

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlockhash() string {
	return base58.Encode(bytes.Repeat([]byte{7}, 32))
}

func TestNewTransaction(t *testing.T) {
	payer := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	owner := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	src := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	dst := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	mint := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))

	t.Run("fee payer leads the signers", func(t *testing.T) {
		tx, err := NewTransaction(payer, testBlockhash(), TransferChecked(src, mint, dst, owner, 10, 6))
		require.NoError(t, err)

		assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
		assert.Equal(t, []PublicKey{payer, owner}, tx.signers())
		assert.Contains(t, tx.Message.AccountKeys, TokenProgramID)
	})

	t.Run("merges duplicate accounts", func(t *testing.T) {
		tx, err := NewTransaction(payer, testBlockhash(), Transfer(payer, dst, 1))
		require.NoError(t, err)

		assert.ElementsMatch(t, []PublicKey{payer, dst, SystemProgramID}, []PublicKey(tx.Message.AccountKeys))
		assert.Equal(t, uint8(1), tx.Message.Header.NumRequiredSignatures)
	})

	t.Run("rejects a malformed blockhash", func(t *testing.T) {
		_, err := NewTransaction(payer, "nope", Transfer(payer, dst, 1))
		assert.ErrorIs(t, err, ErrInvalidBlockhash)
	})
}

func TestTransaction(t *testing.T) {
	payerKey := mustKey(t)
	ownerKey := mustKey(t)
	payer := PublicKeyFromEd25519(payerKey.Public().(ed25519.PublicKey))
	owner := PublicKeyFromEd25519(ownerKey.Public().(ed25519.PublicKey))
	dst := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	mint := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))

	t.Run("single signer transfer serializes and verifies", func(t *testing.T) {
		tx, err := NewTransaction(payer, testBlockhash(), Transfer(payer, dst, 500))
		require.NoError(t, err)
		require.NoError(t, tx.Sign(payerKey))

		raw, err := tx.MarshalBinary()
		require.NoError(t, err)

		assert.Equal(t, byte(1), raw[0])
		msg, err := tx.Message.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, msg, raw[1+64:])
		assert.True(t, ed25519.Verify(payerKey.Public().(ed25519.PublicKey), msg, raw[1:65]))
		assert.Equal(t, base58.Encode(raw[1:65]), tx.Signature())

		encoded, err := tx.Base64()
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)
	})

	t.Run("dual signer transaction requires both signatures", func(t *testing.T) {
		tx, err := NewTransaction(payer, testBlockhash(), TransferChecked(dst, mint, dst, owner, 1, 0))
		require.NoError(t, err)

		_, err = tx.MarshalBinary()
		assert.ErrorIs(t, err, ErrMissingSignature)

		assert.ErrorIs(t, tx.Sign(payerKey), ErrMissingSignature)

		require.NoError(t, tx.Sign(payerKey, ownerKey))
		raw, err := tx.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, byte(2), raw[0])
	})

	t.Run("rejects keys that are not signers", func(t *testing.T) {
		tx, err := NewTransaction(payer, testBlockhash(), Transfer(payer, dst, 1))
		require.NoError(t, err)

		assert.Error(t, tx.Sign(payerKey, ownerKey))
	})
}

func instructionData(t *testing.T, ix Instruction) []byte {
	t.Helper()

	data, err := ix.Data()
	require.NoError(t, err)
	return data
}

func TestInstructionData(t *testing.T) {
	a := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))
	b := PublicKeyFromEd25519(mustKey(t).Public().(ed25519.PublicKey))

	t.Run("system transfer", func(t *testing.T) {
		ix := Transfer(a, b, 1_500_000_000)
		data := instructionData(t, ix)

		assert.Equal(t, SystemProgramID, ix.ProgramID())
		assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
		assert.Equal(t, uint64(1_500_000_000), binary.LittleEndian.Uint64(data[4:]))
	})

	t.Run("create account", func(t *testing.T) {
		data := instructionData(t, CreateAccount(a, b, TokenProgramID, 1461600, MintAccountSize))

		assert.Len(t, data, 52)
		assert.Equal(t, uint64(MintAccountSize), binary.LittleEndian.Uint64(data[12:20]))
		assert.Equal(t, TokenProgramID[:], data[20:])
	})

	t.Run("initialize mint without freeze authority", func(t *testing.T) {
		ix := InitializeMint2(b, a, nil, 6)
		data := instructionData(t, ix)

		assert.Equal(t, TokenProgramID, ix.ProgramID())
		assert.Equal(t, []byte{20, 6}, data[:2])
		assert.Equal(t, a[:], data[2:34])
		assert.Equal(t, byte(0), data[34])
		require.Len(t, ix.Accounts(), 1)
		assert.Equal(t, b, ix.Accounts()[0].PublicKey)
	})

	t.Run("initialize mint with freeze authority", func(t *testing.T) {
		data := instructionData(t, InitializeMint2(b, a, &b, 6))

		assert.Equal(t, byte(1), data[34])
		assert.True(t, bytes.Contains(data[35:], b[:]))
	})

	t.Run("transfer checked", func(t *testing.T) {
		data := instructionData(t, TransferChecked(a, b, a, b, 1000, 6))

		assert.Equal(t, byte(12), data[0])
		assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[1:9]))
		assert.Equal(t, byte(6), data[9])
	})

	t.Run("mint to", func(t *testing.T) {
		data := instructionData(t, MintTo(a, b, a, 77))

		assert.Equal(t, byte(7), data[0])
		assert.Equal(t, uint64(77), binary.LittleEndian.Uint64(data[1:]))
	})

	t.Run("create associated account idempotent", func(t *testing.T) {
		ix := CreateAssociatedTokenAccountIdempotent(a, b, a)
		ata, err := FindAssociatedTokenAddress(b, a)
		require.NoError(t, err)

		assert.Equal(t, AssociatedTokenAccountProgramID, ix.ProgramID())
		assert.Equal(t, []byte{1}, instructionData(t, ix))
		require.GreaterOrEqual(t, len(ix.Accounts()), 6)
		assert.Equal(t, a, ix.Accounts()[0].PublicKey)
		assert.True(t, ix.Accounts()[0].IsSigner)
		assert.Equal(t, ata, ix.Accounts()[1].PublicKey)
	})
}
