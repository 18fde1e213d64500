// Package vault is the client for the talos_vault on-chain program: a
// per-owner lamport vault held in a program derived address.
//
// Wire format follows the Anchor conventions the program is built with:
// every instruction, account and event is prefixed with the first 8 bytes of
// sha256("<namespace>:<name>") and the remaining fields are Borsh encoded.
package vault

import (
	"crypto/sha256"

	sol "github.com/gagliardetto/solana-go"
)

// ProgramID is the address the program is deployed under.
var ProgramID = sol.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

const (
	// Seed is the static PDA seed; the owner key is the second seed.
	Seed = "vault"
	// StateSize is the allocated size of a vault account.
	StateSize = 8 + 32 + 8
)

type discriminator [8]byte

func newDiscriminator(namespace, name string) discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	initializeDisc = newDiscriminator("global", "initialize")
	depositDisc    = newDiscriminator("global", "deposit")
	withdrawDisc   = newDiscriminator("global", "withdraw")

	stateDisc = newDiscriminator("account", "VaultState")

	vaultInitializedDisc = newDiscriminator("event", "VaultInitialized")
	liquidityAddedDisc   = newDiscriminator("event", "LiquidityAdded")
	liquidityRemovedDisc = newDiscriminator("event", "LiquidityRemoved")
)

// Address derives the vault PDA of owner under programID.
func Address(programID, owner sol.PublicKey) (sol.PublicKey, uint8, error) {
	return sol.FindProgramAddress([][]byte{[]byte(Seed), owner.Bytes()}, programID)
}
