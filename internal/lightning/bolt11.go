package lightning

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoAmount means the invoice's human-readable part carries no amount.
var ErrNoAmount = errors.New("invoice encodes no amount")

// SatoshisFromBolt11 extracts the amount encoded in a bolt11 invoice's
// human-readable part and returns it in satoshis, truncating any
// sub-satoshi remainder. Only the hrp is inspected; the signature and
// tagged fields are not validated here.
func SatoshisFromBolt11(invoice string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(invoice))
	if !strings.HasPrefix(s, "ln") {
		return 0, fmt.Errorf("not a bolt11 invoice")
	}

	// '1' is not in the bech32 charset, so the last '1' separates the hrp.
	sep := strings.LastIndex(s, "1")
	if sep < 2 {
		return 0, fmt.Errorf("malformed invoice: no hrp separator")
	}
	hrp := s[:sep]

	// Skip "ln" and the currency prefix letters up to the first digit.
	i := 2
	for i < len(hrp) && (hrp[i] < '0' || hrp[i] > '9') {
		i++
	}
	if i >= len(hrp) {
		return 0, ErrNoAmount
	}

	j := i
	for j < len(hrp) && hrp[j] >= '0' && hrp[j] <= '9' {
		j++
	}
	num, err := strconv.ParseInt(hrp[i:j], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse invoice amount: %w", err)
	}

	var msat int64
	switch hrp[j:] {
	case "":
		msat = num * 100_000_000_000 // whole BTC
	case "m":
		msat = num * 100_000_000
	case "u":
		msat = num * 100_000
	case "n":
		msat = num * 100
	case "p":
		if num%10 != 0 {
			return 0, fmt.Errorf("sub-millisatoshi amount %dp", num)
		}
		msat = num / 10
	default:
		return 0, fmt.Errorf("unknown amount multiplier %q", hrp[j:])
	}

	return msat / 1000, nil
}
