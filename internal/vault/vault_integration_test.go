//go:build integration

package vault_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/talos/internal/config"
	"github.com/example/talos/internal/solana"
	"github.com/example/talos/internal/vault"
	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// Runs against a local validator with the program deployed:
//
//	ANCHOR_PROVIDER_URL=http://127.0.0.1:8899 ANCHOR_WALLET=~/.config/solana/id.json \
//	  go test -tags integration -run TalosVault -v ./internal/vault
func TestTalosVault(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	programID, err := sol.PublicKeyFromBase58(cfg.ProgramID)
	require.NoError(t, err)
	provider, err := solana.ProviderFromConfig(cfg, slog.Default())
	require.NoError(t, err)

	program := vault.NewClient(provider, programID, slog.Default())

	t.Run("Is initialized!", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		tx, err := program.Initialize(ctx)
		require.NoError(t, err)
		require.NotEqual(t, sol.Signature{}, tx)
		t.Logf("Your transaction signature %s", tx)
	})
}
