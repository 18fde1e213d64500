// Package wallet provides the signing identities used to authorize
// transactions. Callers depend on the Signer interface so that key storage
// (local key, keygen file, hardware) can change without touching the
// transaction code.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"

	sol "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// ErrHardwareUnavailable is returned by HardwareSigner for every operation.
var ErrHardwareUnavailable = errors.New("hardware signing interface is not active in the current build")

// Signer signs serialized transaction messages.
type Signer interface {
	PublicKey() sol.PublicKey
	Sign(message []byte) (sol.Signature, error)
}

// KeySigner signs with an in-memory ed25519 key.
type KeySigner struct {
	key sol.PrivateKey
}

func NewKeySigner(key sol.PrivateKey) *KeySigner { return &KeySigner{key: key} }

func (s *KeySigner) PublicKey() sol.PublicKey { return s.key.PublicKey() }

func (s *KeySigner) Sign(message []byte) (sol.Signature, error) { return s.key.Sign(message) }

// FromKeygenFile loads a solana-keygen JSON keypair.
func FromKeygenFile(path string) (*KeySigner, error) {
	key, err := sol.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeySigner(key), nil
}

// FromBase58 decodes a base58 encoded 64-byte secret key.
func FromBase58(secret string) (*KeySigner, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	// the trailing half must be the public key of the leading seed
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !derived.Equal(ed25519.PrivateKey(raw)) {
		return nil, errors.New("secret key does not match its public key")
	}
	return NewKeySigner(sol.PrivateKey(raw)), nil
}

// FromMnemonic derives a key the way solana-keygen recovers one without a
// derivation path: the first 32 bytes of the BIP-39 seed.
func FromMnemonic(mnemonic string) (*KeySigner, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return NewKeySigner(sol.PrivateKey(key)), nil
}

// Ephemeral generates a throwaway key.
func Ephemeral() (*KeySigner, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key), nil
}

// NewLocalSigner picks the development signer: a base58 secret, then a
// mnemonic, then an ephemeral key. A malformed secret or mnemonic does not
// abort startup; it is logged and replaced by an ephemeral key.
func NewLocalSigner(logger *slog.Logger, secret, mnemonic string) (*KeySigner, error) {
	switch {
	case secret != "":
		s, err := FromBase58(secret)
		if err == nil {
			return s, nil
		}
		logger.Warn("signer_fallback", "source", "SOLANA_PRIVATE_KEY", "err", err)
	case mnemonic != "":
		s, err := FromMnemonic(mnemonic)
		if err == nil {
			return s, nil
		}
		logger.Warn("signer_fallback", "source", "SOLANA_MNEMONIC", "err", err)
	}
	return Ephemeral()
}

// HardwareSigner is a placeholder for HSM or Ledger signing.
type HardwareSigner struct{}

// PublicKey returns the zero key; no device is attached.
func (HardwareSigner) PublicKey() sol.PublicKey { return sol.PublicKey{} }

func (HardwareSigner) Sign([]byte) (sol.Signature, error) {
	return sol.Signature{}, ErrHardwareUnavailable
}

// ShortID is the redacted form of a public key used in logs.
func ShortID(pk sol.PublicKey) string {
	s := pk.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
