// Package issuer binds a proof to a known issuer by wrapping its canonical
// text in an HS256 JWT.
package issuer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
)

// MinKeyLength is the shortest signing key accepted, in bytes.
const MinKeyLength = 32

// ErrUntrustedIssuer marks an envelope that was not produced by this issuer.
var ErrUntrustedIssuer = errors.New("untrusted issuer")

// Claims is the envelope payload. Proof holds the canonical proof text.
type Claims struct {
	Proof string `json:"prf"`
	jwt.RegisteredClaims
}

// Service signs and opens proof envelopes.
type Service struct {
	signingKey []byte
	issuer     string
}

// New constructs a Service. The key must be at least MinKeyLength bytes.
func New(signingKey, issuer string) (*Service, error) {
	if len(signingKey) < MinKeyLength {
		return nil, fmt.Errorf("issuer signing key must be at least %d bytes", MinKeyLength)
	}
	if issuer == "" {
		return nil, errors.New("issuer name is required")
	}
	return &Service{signingKey: []byte(signingKey), issuer: issuer}, nil
}

// Sign wraps encodedProof. The token's iat and exp mirror the proof's own
// validity window so generic JWT tooling shows sensible values.
func (s *Service) Sign(encodedProof string, issuedAt models.Timestamp, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Proof: encodedProof,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt.Time()),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Time().Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign proof envelope: %w", err)
	}
	return signed, nil
}

// Open checks the envelope signature and issuer and returns the inner proof
// text. Time claims are not checked here; the proof verifier owns expiry.
func (s *Service) Open(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return "", untrusted("invalid issuer signature")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return "", untrusted("invalid envelope claims")
	}
	if claims.Issuer != s.issuer {
		return "", untrusted("unexpected issuer")
	}
	if claims.Proof == "" {
		return "", untrusted("envelope carries no proof")
	}
	return claims.Proof, nil
}

func untrusted(msg string) error {
	return dErrors.Wrap(ErrUntrustedIssuer, dErrors.CodeUnauthorized, msg)
}
