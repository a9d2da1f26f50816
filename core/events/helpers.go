package events

import (
	"math/big"
	"strconv"

	"sentechain/crypto"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addrString(a crypto.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func uintString(v uint64) string { return strconv.FormatUint(v, 10) }
