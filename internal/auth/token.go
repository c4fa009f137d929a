package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/congo-pay/wager_escrow/internal/address"
)

var (
	// ErrInvalidToken covers malformed, badly signed or expired caller tokens.
	ErrInvalidToken = errors.New("invalid caller token")
	// ErrStaleToken is returned when iat is missing or older than the allowed age.
	ErrStaleToken = errors.New("caller token too old")
)

// AddressOf returns the caller address an Ed25519 public key signs as.
func AddressOf(pub ed25519.PublicKey) (address.Address, error) {
	return address.FromBytes(pub)
}

// Sign issues a caller token for the key pair. The subject is the signer's
// address, so the token proves control of that address.
func Sign(priv ed25519.PrivateKey, audience string, now time.Time, ttl time.Duration) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", errors.New("ed25519 private key required")
	}
	caller, err := AddressOf(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign caller token: %w", err)
	}
	return token, nil
}

// Verifier checks caller tokens and yields the authenticated address.
type Verifier struct {
	Audience string
	MaxAge   time.Duration
	Now      func() time.Time
}

// Verify validates the EdDSA signature against the key named by sub and
// returns that address.
func (v Verifier) Verify(token string) (address.Address, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return address.Address{}, ErrInvalidToken
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	var claims jwt.RegisteredClaims
	var caller address.Address
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		sub, err := t.Claims.GetSubject()
		if err != nil {
			return nil, err
		}
		caller, err = address.Parse(sub)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(caller[:]), nil
	}, opts...)
	if err != nil {
		return address.Address{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if v.MaxAge > 0 {
		if claims.IssuedAt == nil || now().Sub(claims.IssuedAt.Time) > v.MaxAge {
			return address.Address{}, ErrStaleToken
		}
	}
	return caller, nil
}
