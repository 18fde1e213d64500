package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// TxError is a transaction that landed but failed. Err holds the raw error
// value reported by the cluster, e.g. {"InstructionError":[0,{"Custom":6000}]}.
type TxError struct {
	Signature sol.Signature
	Err       any
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

var customHex = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// CustomErrorCode extracts the program-defined error code from a confirmed
// failure or from a preflight simulation failure.
func CustomErrorCode(err error) (uint32, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return customFromValue(txErr.Err)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if data, ok := rpcErr.Data.(map[string]any); ok {
			if code, ok := customFromValue(data["err"]); ok {
				return code, true
			}
		}
		if code, ok := customFromText(rpcErr.Message); ok {
			return code, true
		}
	}
	if err == nil {
		return 0, false
	}
	return customFromText(err.Error())
}

func customFromValue(v any) (uint32, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	ie, ok := m["InstructionError"].([]any)
	if !ok || len(ie) != 2 {
		return 0, false
	}
	inner, ok := ie[1].(map[string]any)
	if !ok {
		return 0, false
	}
	return toUint32(inner["Custom"])
}

func customFromText(s string) (uint32, bool) {
	m := customHex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		return uint32(n), n >= 0
	case json.Number:
		i, err := strconv.ParseUint(n.String(), 10, 32)
		return uint32(i), err == nil
	case int:
		return uint32(n), n >= 0
	case int64:
		return uint32(n), n >= 0
	case uint32:
		return n, true
	case uint64:
		return uint32(n), true
	}
	return 0, false
}
