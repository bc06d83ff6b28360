package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

const addressHexLen = 40

// Address identifies an account on the ledger. The zero value means
// "no identity".
type Address string

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

// Valid reports whether a is a 0x-prefixed, 20-byte hex address.
func (a Address) Valid() bool {
	s := strings.TrimSpace(string(a))
	if len(s) != addressHexLen+2 || !strings.HasPrefix(strings.ToLower(s[:2]), "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Equal compares two addresses ignoring hex case. Zero addresses never match.
func (a Address) Equal(b Address) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(a)), strings.TrimSpace(string(b)))
}

// Lower returns the canonical lower-case form used for storage and lookups.
func (a Address) Lower() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// Checksum returns the EIP-55 mixed-case encoding of a. Invalid addresses
// are returned unchanged.
func (a Address) Checksum() Address {
	if !a.Valid() {
		return a
	}
	lower := strings.ToLower(strings.TrimSpace(string(a)))[2:]

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return Address("0x" + string(out))
}

func (a Address) String() string {
	return string(a)
}
