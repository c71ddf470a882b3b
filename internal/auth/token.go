package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeAppend authorises appending records to the ledger.
const ScopeAppend = "ledger:append"

// ErrMissingScope is returned by Verify when a token lacks ScopeAppend.
var ErrMissingScope = errors.New("token lacks " + ScopeAppend + " scope")

// WriterClaims are the JWT claims for a ledger writer token.
type WriterClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// TokenIssuer issues and verifies writer tokens signed with HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret : HMAC key shared by every process that verifies tokens.
//	issuer : The "iss" claim value.
//	ttl    : Token lifetime (default: 1 hour).
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue creates a signed writer token for subject.
func (t *TokenIssuer) Issue(subject string) (string, error) {
	now := time.Now().UTC()
	claims := WriterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: []string{ScopeAppend},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a writer token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*WriterClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&WriterClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*WriterClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !slices.Contains(claims.Scopes, ScopeAppend) {
		return nil, ErrMissingScope
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }
