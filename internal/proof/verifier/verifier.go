// Package verifier re-derives a proof's validity from the artifact alone.
package verifier

import (
	"time"

	"checkin/internal/proof/codec"
	"checkin/internal/proof/models"
)

// Verify decodes serialized, checks the expiry window and evaluates the
// acceptance predicate. A non-positive ttl selects models.DefaultTTL.
//
// Structural failures return a malformed rejection together with the codec
// error (matching models.ErrMalformedProof). Expiry and an unsatisfied
// predicate are ordinary outcomes and return a nil error.
func Verify(serialized string, now time.Time, ttl time.Duration) (models.VerificationResult, error) {
	proof, err := codec.Decode(serialized)
	if err != nil {
		return models.Rejected(models.ReasonMalformed), err
	}
	return Evaluate(proof, now, ttl), nil
}

// Evaluate applies the expiry and acceptance rules to an already decoded proof.
func Evaluate(proof models.Proof, now time.Time, ttl time.Duration) models.VerificationResult {
	if ttl <= 0 {
		ttl = models.DefaultTTL
	}

	age := models.TimestampOf(now).Sub(proof.IssuedAt)
	if age < 0 || age > ttl {
		result := models.Rejected(models.ReasonExpired)
		result.Age = &age
		return result
	}

	if !Satisfied(proof.Claims) {
		return models.Rejected(models.ReasonPredicateNotSatisfied)
	}

	claims := proof.Claims
	issuedAt := proof.IssuedAt
	return models.VerificationResult{
		Accepted: true,
		Reason:   models.ReasonAccepted,
		Claims:   &claims,
		IssuedAt: &issuedAt,
		Age:      &age,
	}
}

// Satisfied is the acceptance predicate. NationalityVerified is informational
// and not part of it.
func Satisfied(c models.Claims) bool {
	return c.HasValidID && c.AgeOver18 && c.HasPaymentMethod
}
