package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads "12.50", "12,50", "1.234,56" and "1,234.56". The last
// separator is the decimal one. More than two decimals is an error, which
// also rejects the ambiguous "1.234".
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "EUR"))
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "€"))
	clean = strings.ReplaceAll(clean, " ", "")

	dot, comma := strings.LastIndex(clean, "."), strings.LastIndex(clean, ",")

	switch {
	case comma > dot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case comma >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}

	if !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than two decimals", s)
	}

	return d, nil
}
