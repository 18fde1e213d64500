package solana

import (
	"log/slog"

	"github.com/example/talos/internal/config"
	"github.com/example/talos/internal/wallet"
	"github.com/gagliardetto/solana-go/rpc"
)

// ProviderFromConfig connects to cfg.ProviderURL and signs with the keypair
// file at cfg.WalletPath.
func ProviderFromConfig(cfg config.Config, logger *slog.Logger) (*Provider, error) {
	signer, err := wallet.FromKeygenFile(cfg.WalletPath)
	if err != nil {
		return nil, err
	}
	return NewProvider(rpc.New(cfg.ProviderURL), signer, cfg.Commitment, WithLogger(logger)), nil
}

// ProviderFromEnv reads ANCHOR_PROVIDER_URL and ANCHOR_WALLET (and the rest of
// the environment configuration) and returns the matching provider.
func ProviderFromEnv(logger *slog.Logger) (*Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return ProviderFromConfig(cfg, logger)
}
