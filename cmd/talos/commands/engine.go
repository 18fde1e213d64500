package commands

import (
	"fmt"
	"time"

	"github.com/example/talos/internal/approval"
	"github.com/example/talos/internal/config"
	"github.com/example/talos/internal/payments"
	"github.com/example/talos/internal/router"
	"github.com/example/talos/internal/solana"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/internal/wallet"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

// paymentProvider signs with the agent key (SOLANA_PRIVATE_KEY or
// SOLANA_MNEMONIC), not the Anchor wallet file.
func paymentProvider(c config.Config) (*solana.Provider, error) {
	signer, err := wallet.NewLocalSigner(logger, c.PrivateKey, c.Mnemonic)
	if err != nil {
		return nil, err
	}
	logger.Info("signer_ready", "pubkey", wallet.ShortID(signer.PublicKey()))
	return solana.NewProvider(rpc.New(c.ProviderURL), signer, c.Commitment, solana.WithLogger(logger)), nil
}

func solLimit(name string, v float64) (uint64, error) {
	if v == 0 {
		return 0, nil
	}
	l, err := types.SolToLamports(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return l, nil
}

// newEngine wires the payment engine. store backs human approval; reg may be
// nil. tx is only used in LIVE mode.
func newEngine(c config.Config, tx payments.Transferer, store approval.Store, reg prometheus.Registerer) (*payments.Engine, error) {
	mode, err := payments.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	maxLoss, err := solLimit("MAX_DAILY_LOSS", c.MaxDailyLoss)
	if err != nil {
		return nil, err
	}
	threshold, err := solLimit("APPROVAL_THRESHOLD", c.ApprovalThreshold)
	if err != nil {
		return nil, err
	}
	opts := []payments.Option{
		payments.WithRouter(router.New(router.DefaultNetworks(), logger)),
		payments.WithMetrics(payments.NewMetrics(reg)),
		payments.WithLogger(logger),
		payments.WithConfirmTimeout(c.ConfirmTimeout),
	}
	if store != nil && threshold > 0 {
		opts = append(opts, payments.WithApprover(approval.NewApprover(threshold, store, time.Second, logger)))
	}
	if mode != payments.Live {
		tx = nil
	}
	return payments.NewEngine(mode, payments.Limits{MaxTxPerSession: c.MaxTxPerSession, MaxLossLamports: maxLoss}, tx, opts...)
}
