package events

import (
	"math/big"
	"strconv"
	"strings"

	"vstreet/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddress(raw [20]byte) string {
	return crypto.AddressFromRaw(raw).String()
}

func formatIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = formatUint(id)
	}
	return strings.Join(parts, ",")
}
