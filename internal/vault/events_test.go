package vault

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// encodeEvent is the inverse of decodeEvent, producing the log line the
// program would emit.
func encodeEvent(ev any) (string, error) {
	var d discriminator
	switch e := ev.(type) {
	case VaultInitialized:
		d = vaultInitializedDisc
	case *VaultInitialized:
		d, ev = vaultInitializedDisc, *e
	case LiquidityAdded:
		d = liquidityAddedDisc
	case *LiquidityAdded:
		d, ev = liquidityAddedDisc, *e
	case LiquidityRemoved:
		d = liquidityRemovedDisc
	case *LiquidityRemoved:
		d, ev = liquidityRemovedDisc, *e
	default:
		return "", fmt.Errorf("unknown event %T", ev)
	}
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(ev); err != nil {
		return "", err
	}
	return programDataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func TestParseEvents(t *testing.T) {
	owner := sol.NewWallet().PublicKey()
	initLine, err := encodeEvent(VaultInitialized{Owner: owner, Timestamp: 1_700_000_000})
	require.NoError(t, err)
	addLine, err := encodeEvent(&LiquidityAdded{User: owner, Amount: 500})
	require.NoError(t, err)
	removeLine, err := encodeEvent(LiquidityRemoved{Owner: owner, Amount: 200})
	require.NoError(t, err)

	foreign := programDataPrefix + base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	logs := []string{
		"Program " + ProgramID.String() + " invoke [1]",
		"Program log: Instruction: Initialize",
		initLine,
		foreign,
		programDataPrefix + "!!not base64!!",
		addLine,
		removeLine,
		"Program " + ProgramID.String() + " success",
	}

	events, err := ParseEvents(logs)
	require.NoError(t, err)
	require.Equal(t, []any{
		&VaultInitialized{Owner: owner, Timestamp: 1_700_000_000},
		&LiquidityAdded{User: owner, Amount: 500},
		&LiquidityRemoved{Owner: owner, Amount: 200},
	}, events)
}

func TestParseEvents_Truncated(t *testing.T) {
	short := programDataPrefix + base64.StdEncoding.EncodeToString(liquidityAddedDisc[:])
	_, err := ParseEvents([]string{short})
	require.ErrorContains(t, err, "decode event")
}

func TestEncodeEvent_Unknown(t *testing.T) {
	_, err := encodeEvent(struct{}{})
	require.Error(t, err)
}

func TestEventDiscriminatorsDistinct(t *testing.T) {
	seen := map[discriminator]string{}
	for name, d := range map[string]discriminator{
		"VaultInitialized": vaultInitializedDisc,
		"LiquidityAdded":   liquidityAddedDisc,
		"LiquidityRemoved": liquidityRemovedDisc,
	} {
		if prev, ok := seen[d]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[d] = name
	}
	// guard against accidental use of the instruction namespace
	require.NotEqual(t, newDiscriminator("global", "VaultInitialized"), vaultInitializedDisc)
}

func TestBorshAmountLayout(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(amountArgs{Amount: 0x0102}))
	require.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, buf.Bytes())
}
