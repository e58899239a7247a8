package checkin

import (
	"checkin/internal/proof/models"
)

// IssueResult is a freshly issued artifact. Artifact is what the holder
// presents; it is the canonical proof text, or its signed envelope.
type IssueResult struct {
	Artifact  string
	Proof     models.Proof
	ExpiresAt models.Timestamp
}

// CheckResult is the outcome of presenting an artifact.
type CheckResult struct {
	models.VerificationResult

	// CommitmentFingerprint is empty when the artifact could not be decoded.
	CommitmentFingerprint string
}
