package solana

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestProviderFromEnv_UsesAnchorWallet(t *testing.T) {
	key, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	body, err := json.Marshal(ints)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("TALOS_CONFIG", "")
	t.Setenv("TALOS_MODE", "")
	t.Setenv("ANCHOR_PROVIDER_URL", "http://127.0.0.1:8899")
	t.Setenv("ANCHOR_WALLET", path)

	p, err := ProviderFromEnv(slog.Default())
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), p.Wallet().PublicKey())

	t.Setenv("ANCHOR_WALLET", filepath.Join(t.TempDir(), "missing.json"))
	_, err = ProviderFromEnv(slog.Default())
	require.Error(t, err)
}
