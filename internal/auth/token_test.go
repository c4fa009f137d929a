package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func TestSignAndVerify(t *testing.T) {
	priv := newKey(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := Sign(priv, "wager-escrow", now, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := Verifier{Audience: "wager-escrow", MaxAge: 5 * time.Minute, Now: func() time.Time { return now.Add(10 * time.Second) }}
	caller, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want, _ := AddressOf(priv.Public().(ed25519.PublicKey))
	if caller != want {
		t.Fatalf("expected caller %s, got %s", want, caller)
	}
}

func TestVerifyRejects(t *testing.T) {
	priv := newKey(t)
	other := newKey(t)
	now := time.Unix(1_700_000_000, 0)
	at := func(d time.Duration) func() time.Time { return func() time.Time { return now.Add(d) } }

	good, _ := Sign(priv, "wager-escrow", now, time.Hour)
	wrongAud, _ := Sign(priv, "other", now, time.Hour)
	forged, _ := Sign(other, "wager-escrow", now, time.Hour)

	// swap in another key's signature under priv's subject
	parts := strings.Split(good, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + parts[1] + "." + forgedParts[2]

	cases := []struct {
		name  string
		token string
		v     Verifier
		want  error
	}{
		{"empty", "", Verifier{}, ErrInvalidToken},
		{"garbage", "a.b.c", Verifier{}, ErrInvalidToken},
		{"audience", wrongAud, Verifier{Audience: "wager-escrow", Now: at(0)}, ErrInvalidToken},
		{"signature", spliced, Verifier{Audience: "wager-escrow", Now: at(0)}, ErrInvalidToken},
		{"expired", good, Verifier{Audience: "wager-escrow", Now: at(2 * time.Hour)}, ErrInvalidToken},
		{"stale", good, Verifier{Audience: "wager-escrow", MaxAge: time.Minute, Now: at(30 * time.Minute)}, ErrStaleToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.v.Verify(tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
