// Package generator turns a holder's private attribute record into a proof.
package generator

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"checkin/internal/proof/commitment"
	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
)

const (
	maxNameLength       = 128
	maxAge              = 150
	maxIDFragmentLength = 12
	adultAge            = 18
	idFragmentDigits    = 4
)

// Generator produces proofs. It holds no mutable state and is safe for
// concurrent use.
type Generator struct {
	entropy io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithEntropy replaces the blinding-factor source. Tests use this to make
// commitments reproducible; production code should keep crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.entropy = r
		}
	}
}

// New constructs a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{entropy: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate validates record and returns a proof issued at now. On error the
// returned Proof is the zero value.
func (g *Generator) Generate(record models.AttributeRecord, now time.Time) (models.Proof, error) {
	if err := Validate(record); err != nil {
		return models.Proof{}, err
	}

	issuedAt := models.TimestampOf(now)
	blinding, err := commitment.NewBlinding(g.entropy)
	if err != nil {
		return models.Proof{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate blinding factor")
	}
	c, err := commitment.Commit(record, issuedAt, blinding)
	if err != nil {
		return models.Proof{}, dErrors.Wrap(err, dErrors.CodeInternal, "compute commitment")
	}

	return models.Proof{
		Version:    models.CurrentVersion,
		Commitment: c,
		IssuedAt:   issuedAt,
		Claims:     DeriveClaims(record),
	}, nil
}

// Validate enforces the attribute domain. Failures match
// models.ErrInvalidAttribute and carry dErrors.CodeValidation.
func Validate(record models.AttributeRecord) error {
	name := strings.TrimSpace(record.Name)
	switch {
	case name == "":
		return invalid("name is required")
	case len(record.Name) > maxNameLength:
		return invalid(fmt.Sprintf("name must be at most %d bytes", maxNameLength))
	case !utf8.ValidString(record.Name):
		return invalid("name must be valid UTF-8")
	case record.Age < 0:
		return invalid("age must not be negative")
	case record.Age > maxAge:
		return invalid(fmt.Sprintf("age must be at most %d", maxAge))
	case strings.TrimSpace(record.IDFragment) == "":
		return invalid("id fragment is required")
	case len(record.IDFragment) > maxIDFragmentLength:
		return invalid(fmt.Sprintf("id fragment must be at most %d bytes", maxIDFragmentLength))
	}
	return nil
}

// DeriveClaims computes the claim set. It depends only on record, never on time.
func DeriveClaims(record models.AttributeRecord) models.Claims {
	return models.Claims{
		HasValidID:          wellFormedIDFragment(record.IDFragment),
		AgeOver18:           record.Age >= adultAge,
		HasPaymentMethod:    record.HasPaymentMethod,
		NationalityVerified: true,
	}
}

func wellFormedIDFragment(s string) bool {
	if len(s) != idFragmentDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func invalid(msg string) error {
	return dErrors.Wrap(models.ErrInvalidAttribute, dErrors.CodeValidation, msg)
}
