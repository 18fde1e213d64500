package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/talos/internal/wallet"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// RPC is the subset of the JSON-RPC client the provider uses. *rpc.Client
// satisfies it.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account sol.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetTransaction(ctx context.Context, sig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetHealth(ctx context.Context) (string, error)
}

// BalanceFetcher abstracts fetching balances for a wallet.
type BalanceFetcher interface {
	GetBalance(ctx context.Context, pubkey sol.PublicKey) (lamports uint64, latency time.Duration, err error)
}

// Provider binds a cluster connection to a signing identity. It is safe for
// concurrent use and is not modified after construction.
type Provider struct {
	rpc        RPC
	signer     wallet.Signer
	commitment rpc.CommitmentType
	pollEvery  time.Duration
	logger     *slog.Logger
}

type Option func(*Provider)

// WithPollInterval sets how often signature status is polled while confirming.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollEvery = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

func NewProvider(client RPC, signer wallet.Signer, commitment string, opts ...Option) *Provider {
	cm := rpc.CommitmentType(commitment)
	if cm == "" {
		cm = rpc.CommitmentConfirmed
	}
	p := &Provider{
		rpc:        client,
		signer:     signer,
		commitment: cm,
		pollEvery:  500 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Wallet() wallet.Signer { return p.signer }

func (p *Provider) Commitment() rpc.CommitmentType { return p.commitment }

func (p *Provider) GetBalance(ctx context.Context, pubkey sol.PublicKey) (uint64, time.Duration, error) {
	start := time.Now()
	res, err := p.rpc.GetBalance(ctx, pubkey, p.commitment)
	lat := time.Since(start)
	if err != nil {
		return 0, lat, err
	}
	return uint64(res.Value), lat, nil
}

// Health reports whether the RPC node considers itself healthy.
func (p *Provider) Health(ctx context.Context) error {
	status, err := p.rpc.GetHealth(ctx)
	if err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("rpc node unhealthy: %s", status)
	}
	return nil
}

// AccountData returns the raw data and owning program of an account.
func (p *Provider) AccountData(ctx context.Context, account sol.PublicKey) ([]byte, sol.PublicKey, error) {
	res, err := p.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: p.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, sol.PublicKey{}, ErrAccountNotFound
		}
		return nil, sol.PublicKey{}, fmt.Errorf("get account info: %w", err)
	}
	if res == nil || res.Value == nil {
		return nil, sol.PublicKey{}, ErrAccountNotFound
	}
	return res.Value.Data.GetBinary(), res.Value.Owner, nil
}

// SendAndConfirm builds a transaction paid and signed by the provider wallet,
// submits it with preflight checks and blocks until it reaches the provider
// commitment. No signature is returned when any step fails.
func (p *Provider) SendAndConfirm(ctx context.Context, ixs ...sol.Instruction) (sol.Signature, error) {
	if len(ixs) == 0 {
		return sol.Signature{}, errors.New("no instructions")
	}
	bh, err := p.rpc.GetLatestBlockhash(ctx, p.commitment)
	if err != nil {
		return sol.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if bh == nil || bh.Value == nil {
		return sol.Signature{}, errors.New("get latest blockhash: empty result")
	}
	tx, err := sol.NewTransaction(ixs, bh.Value.Blockhash, sol.TransactionPayer(p.signer.PublicKey()))
	if err != nil {
		return sol.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if err := p.sign(tx); err != nil {
		return sol.Signature{}, err
	}

	start := time.Now()
	sig, err := p.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: p.commitment})
	if err != nil {
		return sol.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := p.confirm(ctx, sig); err != nil {
		p.logger.Warn("tx_failed", "sig", sig.String(), "err", err)
		return sol.Signature{}, err
	}
	p.logger.Info("tx_confirmed", "sig", sig.String(), "commitment", string(p.commitment), "latency_ms", time.Since(start).Milliseconds())
	return sig, nil
}

func (p *Provider) sign(tx *sol.Transaction) error {
	if n := int(tx.Message.Header.NumRequiredSignatures); n != 1 {
		return fmt.Errorf("transaction requires %d signatures, provider signs only as fee payer", n)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	sig, err := p.signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signatures = []sol.Signature{sig}
	return nil
}

func (p *Provider) confirm(ctx context.Context, sig sol.Signature) error {
	t := time.NewTicker(p.pollEvery)
	defer t.Stop()
	for {
		res, err := p.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return fmt.Errorf("get signature status: %w", err)
		}
		if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return &TxError{Signature: sig, Err: st.Err}
			}
			if reached(st.ConfirmationStatus, p.commitment) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-t.C:
		}
	}
}

// TransactionLogs returns the program log lines of a confirmed transaction.
func (p *Provider) TransactionLogs(ctx context.Context, sig sol.Signature) ([]string, error) {
	cm := p.commitment
	if cm == rpc.CommitmentProcessed {
		// getTransaction does not accept processed
		cm = rpc.CommitmentConfirmed
	}
	var version uint64
	res, err := p.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     cm,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if res == nil || res.Meta == nil {
		return nil, nil
	}
	return res.Meta.LogMessages, nil
}

func rank(s string) int {
	switch s {
	case string(rpc.ConfirmationStatusProcessed):
		return 1
	case string(rpc.ConfirmationStatusConfirmed):
		return 2
	case string(rpc.ConfirmationStatusFinalized):
		return 3
	}
	return 0
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	got := rank(string(status))
	return got > 0 && got >= rank(string(want))
}
