package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestFromBase58_RoundTrip(t *testing.T) {
	key, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := FromBase58(base58.Encode(key))
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), s.PublicKey())

	msg := []byte("hello vault")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(ed25519.PublicKey(s.PublicKey().Bytes()), msg, sig[:]))
}

func TestFromBase58_Rejects(t *testing.T) {
	_, err := FromBase58("0OIl")
	require.Error(t, err)

	_, err = FromBase58(base58.Encode([]byte{1, 2, 3}))
	require.ErrorContains(t, err, "must be 64 bytes")

	key, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)
	tampered := append([]byte(nil), key...)
	tampered[63] ^= 0xff
	_, err = FromBase58(base58.Encode(tampered))
	require.ErrorContains(t, err, "does not match")
}

func TestFromMnemonic_Deterministic(t *testing.T) {
	a, err := FromMnemonic(testMnemonic)
	require.NoError(t, err)
	b, err := FromMnemonic(testMnemonic)
	require.NoError(t, err)
	require.Equal(t, a.PublicKey(), b.PublicKey())

	_, err = FromMnemonic("not a real mnemonic")
	require.Error(t, err)
}

func TestNewLocalSigner_FallsBackToEphemeral(t *testing.T) {
	s, err := NewLocalSigner(slog.Default(), "garbage!", "")
	require.NoError(t, err)
	require.NotEqual(t, sol.PublicKey{}, s.PublicKey())

	m, err := NewLocalSigner(slog.Default(), "", testMnemonic)
	require.NoError(t, err)
	want, _ := FromMnemonic(testMnemonic)
	require.Equal(t, want.PublicKey(), m.PublicKey())
}

func TestFromKeygenFile(t *testing.T) {
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

	s, err := FromKeygenFile(path)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), s.PublicKey())

	_, err = FromKeygenFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestHardwareSigner(t *testing.T) {
	var s Signer = HardwareSigner{}
	_, err := s.Sign([]byte("x"))
	require.True(t, errors.Is(err, ErrHardwareUnavailable))
}

func TestShortID(t *testing.T) {
	pk := sol.SystemProgramID
	require.Equal(t, "11111111", ShortID(pk))
}
