package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose so stores
// and sinks can apply different retention and routing.
type EventCategory string

const (
	// CategorySecurity covers outcomes worth alerting on: forged or replayed
	// artifacts, untrusted issuers.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine issuance and verification traffic.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventProofIssued   AuditEvent = "proof_issued"
	EventProofAccepted AuditEvent = "proof_accepted"
	EventProofRejected AuditEvent = "proof_rejected"
)

// Category returns CategoryOperations for every action; rejections are
// promoted per reason by CategoryFor.
func (e AuditEvent) Category() EventCategory {
	return CategoryOperations
}

// securityReasons are rejection reasons that indicate tampering or reuse
// rather than an honest holder who failed the predicate.
var securityReasons = map[string]struct{}{
	"malformed":        {},
	"replayed":         {},
	"untrusted_issuer": {},
}

// CategoryFor classifies an action together with its reason.
func CategoryFor(action AuditEvent, reason string) EventCategory {
	if action == EventProofRejected {
		if _, ok := securityReasons[reason]; ok {
			return CategorySecurity
		}
	}
	return action.Category()
}

// Event is emitted by the check-in service for every issuance and
// verification. It never carries attribute values; the commitment appears
// only as a fingerprint.
type Event struct {
	ID                    uuid.UUID
	Category              EventCategory
	Timestamp             time.Time
	Action                string
	Decision              string
	Reason                string
	CommitmentFingerprint string
	RequestID             string
	ClientIP              string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
