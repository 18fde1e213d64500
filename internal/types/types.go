// Package types holds the JSON shapes of the operator API.
package types

import (
	"errors"
	"math"
	"time"
)

const LamportsPerSol = 1_000_000_000

// VaultEntry is one vault's decoded state.
type VaultEntry struct {
	Owner     string  `json:"owner"`
	Address   string  `json:"address"`
	Lamports  uint64  `json:"lamports"`
	Sol       float64 `json:"sol"`
	Source    string  `json:"source"`     // "cache" or "rpc"
	FetchedAt string  `json:"fetched_at"` // RFC3339
}

// GetVaultsRequest is the batch lookup payload.
type GetVaultsRequest struct {
	Owners []string `json:"owners"`
}

// ErrorEntry captures a per-owner failure in a batch lookup.
type ErrorEntry struct {
	Owner string `json:"owner"`
	Error string `json:"error"`
}

type GetVaultsResponse struct {
	Vaults []VaultEntry `json:"vaults"`
	Errors []ErrorEntry `json:"errors"`
}

// PaymentRequest carries the amount in SOL, as operators type it.
type PaymentRequest struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Chain  string  `json:"chain,omitempty"`
}

type PaymentResponse struct {
	Signature string `json:"signature"`
	Chain     string `json:"chain"`
	Mode      string `json:"mode"`
	Lamports  uint64 `json:"lamports"`
}

// CreateKeyRequest: Owner is optional.
type CreateKeyRequest struct {
	Owner string `json:"owner"`
}

type CreateKeyResponse struct {
	Key     string `json:"key"`
	Prefix  string `json:"prefix"`
	Active  bool   `json:"active"`
	Owner   string `json:"owner,omitempty"`
	Created string `json:"created_at"`
}

// DecisionRequest is posted by the dashboard; Decision is APPROVED or REJECTED.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

func NowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// LamportsToSol converts lamports to SOL as a float.
func LamportsToSol(l uint64) float64 { return float64(l) / LamportsPerSol }

var ErrBadAmount = errors.New("amount must be a positive number of SOL")

// SolToLamports rounds to the nearest lamport.
func SolToLamports(s float64) (uint64, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 0, ErrBadAmount
	}
	l := math.Round(s * LamportsPerSol)
	if l < 1 || l > math.MaxUint64/2 {
		return 0, ErrBadAmount
	}
	return uint64(l), nil
}

// NewVaultEntry fills the derived fields from raw lamports and fetch time.
func NewVaultEntry(owner, address string, lamports uint64, source string, ts time.Time) VaultEntry {
	return VaultEntry{
		Owner:     owner,
		Address:   address,
		Lamports:  lamports,
		Sol:       LamportsToSol(lamports),
		Source:    source,
		FetchedAt: ts.UTC().Format(time.RFC3339),
	}
}

// SumLamports totals a batch.
func SumLamports(entries []VaultEntry) uint64 {
	var total uint64
	for i := range entries {
		total += entries[i].Lamports
	}
	return total
}
