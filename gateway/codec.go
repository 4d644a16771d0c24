package gateway

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"hublend/crypto"
	"hublend/native/lock"
)

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid address %q: %w", value, err)
	}
	return addr.Raw(), nil
}

func parseID(value string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 32 {
		return id, fmt.Errorf("invalid 32-byte id %q", value)
	}
	copy(id[:], raw)
	return id, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func parseHexBytes(value string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return raw, nil
}

// parseFieldElement accepts a field element as 0x-prefixed hex or decimal.
func parseFieldElement(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		elem, ok := new(big.Int).SetString(trimmed[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid field element %q", value)
		}
		return elem, nil
	}
	elem, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid field element %q", value)
	}
	return elem, nil
}

func parseIntentType(value string) (lock.IntentType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BORROW":
		return lock.IntentBorrow, nil
	case "WITHDRAW":
		return lock.IntentWithdraw, nil
	default:
		return lock.IntentUnknown, fmt.Errorf("invalid intent type %q", value)
	}
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.HubPrefix, addr[:]).String()
}

func formatID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
