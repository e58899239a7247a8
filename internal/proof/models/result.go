package models

import "time"

// Reason explains a verification outcome.
type Reason string

const (
	ReasonAccepted              Reason = "accepted"
	ReasonMalformed             Reason = "malformed"
	ReasonExpired               Reason = "expired"
	ReasonPredicateNotSatisfied Reason = "predicate_not_satisfied"
	ReasonReplayed              Reason = "replayed"
	ReasonUntrustedIssuer       Reason = "untrusted_issuer"
)

// VerificationResult is the verifier's decision. Claims and IssuedAt are set
// only when Accepted is true. Age is set for accepted and expired outcomes.
type VerificationResult struct {
	Accepted bool
	Reason   Reason
	Claims   *Claims
	IssuedAt *Timestamp
	Age      *time.Duration
}

// Rejected builds a rejection that exposes no claim data.
func Rejected(reason Reason) VerificationResult {
	return VerificationResult{Reason: reason}
}
