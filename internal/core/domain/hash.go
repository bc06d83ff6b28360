package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// TxHash derives a transaction hash from its parts with Keccak-256.
func TxHash(parts ...string) string {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ContractAddress derives a contract address from a seed, the way a
// deployer derives it from sender and nonce.
func ContractAddress(seed ...string) Address {
	sum, _ := hex.DecodeString(TxHash(seed...)[2:])
	return Address("0x" + hex.EncodeToString(sum[12:])).Checksum()
}
