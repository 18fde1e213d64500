package vault

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
)

const programDataPrefix = "Program data: "

// VaultInitialized is emitted by initialize.
type VaultInitialized struct {
	Owner     sol.PublicKey
	Timestamp int64
}

// LiquidityAdded is emitted by deposit.
type LiquidityAdded struct {
	User   sol.PublicKey
	Amount uint64
}

// LiquidityRemoved is emitted by withdraw.
type LiquidityRemoved struct {
	Owner  sol.PublicKey
	Amount uint64
}

// ParseEvents decodes the vault events found in transaction logs. Lines that
// are not event payloads, or carry events of other programs, are skipped.
func ParseEvents(logs []string) ([]any, error) {
	var out []any
	for _, line := range logs {
		payload, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil || len(raw) < 8 {
			continue
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			return out, err
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

func decodeEvent(raw []byte) (any, error) {
	var d discriminator
	copy(d[:], raw[:8])
	var ev any
	switch d {
	case vaultInitializedDisc:
		ev = &VaultInitialized{}
	case liquidityAddedDisc:
		ev = &LiquidityAdded{}
	case liquidityRemovedDisc:
		ev = &LiquidityRemoved{}
	default:
		return nil, nil
	}
	if err := bin.NewBorshDecoder(raw[8:]).Decode(ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
