// Package units converts between a ledger's integer base unit and its
// decimal display unit (wei and ether for 18 decimals).
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// EtherDecimals is the number of decimals between wei and ether.
const EtherDecimals = 18

const maxDecimals = 77

// Converter converts amounts using a fixed number of decimals.
type Converter struct {
	decimals int
	scale    *big.Int
}

// NewConverter returns a Converter for the given number of decimals.
func NewConverter(decimals int) (*Converter, error) {
	if decimals < 0 || decimals > maxDecimals {
		return nil, fmt.Errorf("units: decimals %d out of range [0, %d]", decimals, maxDecimals)
	}
	return &Converter{
		decimals: decimals,
		scale:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
	}, nil
}

// Decimals returns the configured number of decimals.
func (c *Converter) Decimals() int {
	return c.decimals
}

// ToDisplay renders base units as a decimal string without trailing zeros,
// e.g. 1500000000000000000 wei -> "1.5".
func (c *Converter) ToDisplay(amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() < 0 {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedAmount, amount)
	}

	q, r := new(big.Int).QuoRem(amount, c.scale, new(big.Int))
	if r.Sign() == 0 || c.decimals == 0 {
		return q.String(), nil
	}

	frac := r.String()
	frac = strings.Repeat("0", c.decimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac, nil
}

// FromDisplay parses a non-negative decimal string into base units. More
// fractional digits than the configured decimals is an error.
func (c *Converter) FromDisplay(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", domain.ErrMalformedAmount)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasDot && frac == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedAmount, amount)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedAmount, amount)
	}
	if len(frac) > c.decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", domain.ErrMalformedAmount, amount, c.decimals)
	}

	digits := whole + frac + strings.Repeat("0", c.decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedAmount, amount)
	}
	return v, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
