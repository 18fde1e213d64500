package vault

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
)

var ErrDiscriminatorMismatch = errors.New("account is not a VaultState")

// State is the on-chain VaultState account.
type State struct {
	Owner   sol.PublicKey
	Balance uint64
}

// DecodeState parses raw account data. Trailing bytes past StateSize are
// ignored.
func DecodeState(data []byte) (State, error) {
	if len(data) < StateSize {
		return State{}, fmt.Errorf("vault account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], stateDisc[:]) {
		return State{}, ErrDiscriminatorMismatch
	}
	var s State
	if err := bin.NewBorshDecoder(data[8:StateSize]).Decode(&s); err != nil {
		return State{}, fmt.Errorf("decode vault state: %w", err)
	}
	return s, nil
}

// Encode serializes s the way the program stores it.
func (s State) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(stateDisc[:])
	if err := bin.NewBorshEncoder(buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanWithdraw applies the program's withdraw checks locally so a doomed
// transaction is never sent.
func (s State) CanWithdraw(signer sol.PublicKey, amount uint64) error {
	if !signer.Equals(s.Owner) {
		return ErrUnauthorized
	}
	if s.Balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}
