package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

func mustConverter(t *testing.T, decimals int) *Converter {
	t.Helper()
	c, err := NewConverter(decimals)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	return c
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test amount " + s)
	}
	return v
}

func TestConverter_ToDisplay(t *testing.T) {
	c := mustConverter(t, EtherDecimals)

	cases := map[string]string{
		"0":                    "0",
		"1":                    "0.000000000000000001",
		"1000000000000000000":  "1",
		"1500000000000000000":  "1.5",
		"25000000000000000000": "25",
		"123456789000000000":   "0.123456789",
	}
	for in, want := range cases {
		got, err := c.ToDisplay(wei(in))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestConverter_ToDisplayMalformed(t *testing.T) {
	c := mustConverter(t, EtherDecimals)

	for _, in := range []*big.Int{nil, big.NewInt(-1)} {
		if _, err := c.ToDisplay(in); !errors.Is(err, domain.ErrMalformedAmount) {
			t.Errorf("%v: expected ErrMalformedAmount, got %v", in, err)
		}
	}
}

func TestConverter_FromDisplay(t *testing.T) {
	c := mustConverter(t, EtherDecimals)

	cases := map[string]string{
		"1":       "1000000000000000000",
		"1.5":     "1500000000000000000",
		".25":     "250000000000000000",
		" 2 ":     "2000000000000000000",
		"0.00001": "10000000000000",
	}
	for in, want := range cases {
		got, err := c.FromDisplay(in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", in, err)
			continue
		}
		if got.String() != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestConverter_FromDisplayRejects(t *testing.T) {
	c := mustConverter(t, 2)

	for _, in := range []string{"", "abc", "-1", "1.", "1.234", "1e5", "1.2.3"} {
		if _, err := c.FromDisplay(in); !errors.Is(err, domain.ErrMalformedAmount) {
			t.Errorf("%q: expected ErrMalformedAmount, got %v", in, err)
		}
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	c := mustConverter(t, 6)

	for _, s := range []string{"0", "1", "999999", "1000000", "123456789"} {
		disp, err := c.ToDisplay(wei(s))
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		back, err := c.FromDisplay(disp)
		if err != nil {
			t.Fatalf("%s -> %s: %v", s, disp, err)
		}
		if back.String() != s {
			t.Errorf("round trip %s -> %s -> %s", s, disp, back)
		}
	}
}

func TestNewConverter_RejectsBadDecimals(t *testing.T) {
	if _, err := NewConverter(-1); err == nil {
		t.Error("expected error for negative decimals")
	}
	if _, err := NewConverter(100); err == nil {
		t.Error("expected error for huge decimals")
	}
}
