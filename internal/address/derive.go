package address

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

const (
	// SeedEscrow derives the address an Escrow Record is stored under.
	SeedEscrow = "escrow"
	// SeedVault derives the custody account of a wager.
	SeedVault = "vault"
	// SeedSweeper derives the default refund trigger identity.
	SeedSweeper = "sweeper"

	// CanonicalBump is the only bump Derive hands out.
	CanonicalBump uint8 = 255

	programTag = "wager_escrow/v1"
)

// Derive computes the deterministic address for (seed, wagerID) together with
// the bump that proves it.
func Derive(seed string, wagerID uint64) (Address, uint8) {
	return deriveWithBump(seed, wagerID, CanonicalBump), CanonicalBump
}

// Verify re-derives the address from the stored bump and compares it with want.
func Verify(seed string, wagerID uint64, bump uint8, want Address) bool {
	if bump != CanonicalBump {
		return false
	}
	return deriveWithBump(seed, wagerID, bump) == want
}

func deriveWithBump(seed string, wagerID uint64, bump uint8) Address {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], wagerID)

	h, _ := blake2b.New256(nil)
	h.Write([]byte(seed))
	h.Write(id[:])
	h.Write([]byte{bump})
	h.Write([]byte(programTag))

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}
