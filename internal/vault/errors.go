package vault

import (
	"errors"
	"fmt"

	"github.com/example/talos/internal/solana"
)

var ErrVaultNotFound = errors.New("vault not found")

// ProgramError is an error code defined by the vault program.
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("vault program error %d (%s): %s", e.Code, e.Name, e.Msg)
}

// Is matches program errors by code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

// Anchor numbers user errors from 6000.
var (
	ErrUnauthorized      = &ProgramError{Code: 6000, Name: "Unauthorized", Msg: "Unauthorized access."}
	ErrInsufficientFunds = &ProgramError{Code: 6001, Name: "InsufficientFunds", Msg: "Insufficient funds."}
)

var programErrors = map[uint32]*ProgramError{
	ErrUnauthorized.Code:      ErrUnauthorized,
	ErrInsufficientFunds.Code: ErrInsufficientFunds,
}

// translate attaches the matching ProgramError to a transaction failure.
func translate(err error) error {
	if err == nil {
		return nil
	}
	code, ok := solana.CustomErrorCode(err)
	if !ok {
		return err
	}
	pe, ok := programErrors[code]
	if !ok {
		return err
	}
	return fmt.Errorf("%w: %w", pe, err)
}
