package chains

import (
	"math/big"
	"strings"
)

// FormatUnits converts a raw integer amount in a chain's smallest
// denomination to a decimal string at the chain's precision. Trailing zeros
// in the fraction are trimmed and the fraction is truncated to maxFraction
// digits. A nil or zero amount formats as "0".
func FormatUnits(raw *big.Int, decimals, maxFraction int) string {
	if raw == nil || raw.Sign() == 0 {
		return "0"
	}

	s := new(big.Int).Abs(raw).String()
	neg := raw.Sign() < 0

	var intPart, fracPart string
	if len(s) <= decimals {
		intPart = "0"
		fracPart = strings.Repeat("0", decimals-len(s)) + s
	} else {
		intPart = s[:len(s)-decimals]
		fracPart = s[len(s)-decimals:]
	}

	if maxFraction >= 0 && len(fracPart) > maxFraction {
		fracPart = fracPart[:maxFraction]
	}
	fracPart = strings.TrimRight(fracPart, "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatUnitsString is FormatUnits for APIs that return the raw amount as a
// decimal string. A string that does not parse as a base-10 integer formats
// as "0".
func FormatUnitsString(raw string, decimals, maxFraction int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "0"
	}
	return FormatUnits(n, decimals, maxFraction)
}
