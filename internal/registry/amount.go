package registry

import (
	"math/big"
	"regexp"
	"strings"

	werr "github.com/ggonzalez94/walletd/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// DecimalToBaseUnits converts a human decimal amount string into the token's
// smallest-unit integer string. The conversion is exact; precision beyond the
// token's decimals is rejected rather than rounded.
func DecimalToBaseUnits(decimal string, decimals int) (string, error) {
	decimal = strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(decimal) {
		return "", werr.New(werr.CodeValidation, "Invalid amount")
	}
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", werr.New(werr.CodeValidation, "Invalid amount")
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", werr.New(werr.CodeValidation, "Invalid amount")
	}
	return combined, nil
}

// FormatBaseUnits converts a smallest-unit integer string into a human
// decimal string, trimming trailing zeros.
func FormatBaseUnits(baseUnits string, decimals int) string {
	n := new(big.Int)
	if _, ok := n.SetString(baseUnits, 10); !ok {
		return baseUnits
	}
	if decimals == 0 {
		return n.String()
	}

	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
