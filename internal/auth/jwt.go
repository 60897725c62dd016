// Package auth verifies identity-provider session tokens and talks to the
// provider's backend API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The frontend signs the user in with the identity provider (Clerk).
//  2. The provider issues a short-lived session JWT, sent to us either as
//     "Authorization: Bearer <jwt>" or in the "__session" cookie.
//  3. RequireAuth / OptionalAuth verify the token and put its subject (the
//     provider's user id) in the request context.
//  4. On first login the frontend calls POST /api/users/sync, which fetches
//     the provider profile through ProviderClient and creates the local user.
//
// We never see passwords and never issue production tokens ourselves. In
// production tokens are RS256, verified with the provider's PEM public key.
// For local development and tests an HS256 shared secret is accepted instead,
// and Issue can mint tokens with it.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerates small clock differences between us and the provider.
const clockSkew = 5 * time.Second

// Verifier validates session tokens and extracts their subject.
type Verifier struct {
	publicKey *rsa.PublicKey
	secret    []byte
	issuer    string
}

// NewVerifier builds a Verifier. publicKeyPEM selects RS256 and takes
// precedence over secret (HS256). issuer is checked against "iss" when
// non-empty.
func NewVerifier(publicKeyPEM, secret, issuer string) (*Verifier, error) {
	v := &Verifier{issuer: issuer}

	switch {
	case publicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parsing identity public key: %w", err)
		}
		v.publicKey = key
	case secret != "":
		if len(secret) < 16 {
			return nil, errors.New("auth: identity JWT secret must be at least 16 characters")
		}
		v.secret = []byte(secret)
	default:
		return nil, errors.New("auth: either an identity public key or a JWT secret is required")
	}

	return v, nil
}

// Verify parses and validates a session token and returns its subject.
//
// The accepted algorithm is pinned to the configured key type, so a token
// signed with "none" or with the public key as an HMAC secret is rejected.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	method := "HS256"
	if v.publicKey != nil {
		method = "RS256"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c, v.key, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}

func (v *Verifier) key(token *jwt.Token) (any, error) {
	if v.publicKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

// Issue mints an HS256 session token for subject. Only available when the
// Verifier was built with a shared secret; used by tests and local tooling.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", errors.New("auth: issuing tokens requires a shared secret")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}
