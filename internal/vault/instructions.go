package vault

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
)

type amountArgs struct {
	Amount uint64
}

func encodeInstruction(d discriminator, args any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// accounts is the account list shared by all three instructions.
func accounts(programID, signer sol.PublicKey) (sol.AccountMetaSlice, error) {
	addr, _, err := Address(programID, signer)
	if err != nil {
		return nil, fmt.Errorf("derive vault address: %w", err)
	}
	return sol.AccountMetaSlice{
		sol.Meta(addr).WRITE(),
		sol.Meta(signer).WRITE().SIGNER(),
		sol.Meta(sol.SystemProgramID),
	}, nil
}

func newInstruction(programID, signer sol.PublicKey, d discriminator, args any) (sol.Instruction, error) {
	metas, err := accounts(programID, signer)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(d, args)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(programID, metas, data), nil
}

// NewInitializeInstruction creates the signer's vault with a zero balance.
func NewInitializeInstruction(programID, signer sol.PublicKey) (sol.Instruction, error) {
	return newInstruction(programID, signer, initializeDisc, nil)
}

// NewDepositInstruction moves amount lamports from signer into its vault.
func NewDepositInstruction(programID, signer sol.PublicKey, amount uint64) (sol.Instruction, error) {
	return newInstruction(programID, signer, depositDisc, amountArgs{Amount: amount})
}

// NewWithdrawInstruction moves amount lamports from the vault back to signer.
func NewWithdrawInstruction(programID, signer sol.PublicKey, amount uint64) (sol.Instruction, error) {
	return newInstruction(programID, signer, withdrawDisc, amountArgs{Amount: amount})
}
