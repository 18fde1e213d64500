// Package solanatest holds an in-memory stand-in for the JSON-RPC client.
package solanatest

import (
	"context"
	"errors"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var errNotStubbed = errors.New("solanatest: method not stubbed")

// Blockhash is a fixed recent blockhash for tests.
var Blockhash = sol.MustHashFromBase58("5NzX7jrPWeTkGsDnVnszdEa7T3Yyr3nSgyc78z3CwjWQ")

// MockRPC implements solana.RPC with overridable function fields. Unset
// fields return an error.
type MockRPC struct {
	GetLatestBlockhashFunc      func(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOptsFunc func(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatusesFunc    func(ctx context.Context, search bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetAccountInfoWithOptsFunc  func(ctx context.Context, account sol.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetTransactionFunc          func(ctx context.Context, sig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetBalanceFunc              func(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetHealthFunc               func(ctx context.Context) (string, error)
}

func (m *MockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.GetLatestBlockhashFunc == nil {
		return nil, errNotStubbed
	}
	return m.GetLatestBlockhashFunc(ctx, commitment)
}

func (m *MockRPC) SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error) {
	if m.SendTransactionWithOptsFunc == nil {
		return sol.Signature{}, errNotStubbed
	}
	return m.SendTransactionWithOptsFunc(ctx, tx, opts)
}

func (m *MockRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if m.GetSignatureStatusesFunc == nil {
		return nil, errNotStubbed
	}
	return m.GetSignatureStatusesFunc(ctx, search, sigs...)
}

func (m *MockRPC) GetAccountInfoWithOpts(ctx context.Context, account sol.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if m.GetAccountInfoWithOptsFunc == nil {
		return nil, errNotStubbed
	}
	return m.GetAccountInfoWithOptsFunc(ctx, account, opts)
}

func (m *MockRPC) GetTransaction(ctx context.Context, sig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if m.GetTransactionFunc == nil {
		return nil, errNotStubbed
	}
	return m.GetTransactionFunc(ctx, sig, opts)
}

func (m *MockRPC) GetBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.GetBalanceFunc == nil {
		return nil, errNotStubbed
	}
	return m.GetBalanceFunc(ctx, account, commitment)
}

func (m *MockRPC) GetHealth(ctx context.Context) (string, error) {
	if m.GetHealthFunc == nil {
		return "", errNotStubbed
	}
	return m.GetHealthFunc(ctx)
}

// LatestBlockhash returns a GetLatestBlockhashFunc yielding Blockhash.
func LatestBlockhash() func(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return func(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
		return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: Blockhash}}, nil
	}
}

// Status returns a GetSignatureStatusesFunc reporting a single status.
func Status(status rpc.ConfirmationStatusType, txErr any) func(context.Context, bool, ...sol.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return func(context.Context, bool, ...sol.Signature) (*rpc.GetSignatureStatusesResult, error) {
		return &rpc.GetSignatureStatusesResult{
			Value: []*rpc.SignatureStatusesResult{{ConfirmationStatus: status, Err: txErr}},
		}, nil
	}
}

// Signature derives the signature the cluster would report: the first one on
// the transaction.
func Signature(tx *sol.Transaction) sol.Signature {
	if len(tx.Signatures) == 0 {
		return sol.Signature{}
	}
	return tx.Signatures[0]
}
