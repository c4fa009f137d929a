package address

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a, err := FromBytes(pub)
	require.NoError(t, err)

	parsed, err := Parse(a.String())
	require.NoError(t, err)
	require.Equal(t, a, parsed)
	require.Equal(t, "acct:"+a.String(), a.AccountCode())
}

func TestParseRejectsWrongLength(t *testing.T) {
	_, err := Parse("3mJr7AoUXx2Wqd")
	require.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = Parse("")
	require.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestUnsetAddress(t *testing.T) {
	var a Address
	require.True(t, a.IsZero())
	require.Equal(t, "", a.String())

	parsed, err := ParseOptional("  ")
	require.NoError(t, err)
	require.True(t, parsed.IsZero())
}

func TestDeriveIsStableAndSeparated(t *testing.T) {
	rec1, bump := Derive(SeedEscrow, 1)
	again, _ := Derive(SeedEscrow, 1)
	vault1, _ := Derive(SeedVault, 1)
	rec2, _ := Derive(SeedEscrow, 2)

	require.Equal(t, CanonicalBump, bump)
	require.Equal(t, rec1, again)
	require.NotEqual(t, rec1, vault1)
	require.NotEqual(t, rec1, rec2)
	require.False(t, rec1.IsZero())
}

func TestVerify(t *testing.T) {
	vault, bump := Derive(SeedVault, 42)
	require.True(t, Verify(SeedVault, 42, bump, vault))
	require.False(t, Verify(SeedVault, 43, bump, vault))
	require.False(t, Verify(SeedEscrow, 42, bump, vault))
	require.False(t, Verify(SeedVault, 42, bump-1, vault))
}
