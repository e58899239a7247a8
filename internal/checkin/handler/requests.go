package handler

import (
	"strings"

	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
)

// maxArtifactLength bounds the artifact field before any decoding. Signed
// envelopes are base64 and larger than the canonical proof text.
const maxArtifactLength = 16 << 10

// IssueRequest is the HTTP request body for POST /v1/proofs.
type IssueRequest struct {
	Name             string `json:"name"`
	Age              *int   `json:"age"`
	IDFragment       string `json:"id_fragment"`
	HasPaymentMethod bool   `json:"has_payment_method"`
}

// Normalize trims surrounding whitespace from string fields.
func (r *IssueRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.IDFragment = strings.TrimSpace(r.IDFragment)
}

// Validate checks presence only; attribute rules belong to the generator.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Age == nil {
		return dErrors.New(dErrors.CodeValidation, "age is required")
	}
	return nil
}

// Record converts the request into the holder's attribute record.
func (r *IssueRequest) Record() models.AttributeRecord {
	rec := models.AttributeRecord{
		Name:             r.Name,
		IDFragment:       r.IDFragment,
		HasPaymentMethod: r.HasPaymentMethod,
	}
	if r.Age != nil {
		rec.Age = *r.Age
	}
	return rec
}

// VerifyRequest is the HTTP request body for POST /v1/proofs/verify.
type VerifyRequest struct {
	Artifact string `json:"artifact"`
}

func (r *VerifyRequest) Normalize() {
	r.Artifact = strings.TrimSpace(r.Artifact)
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Artifact == "" {
		return dErrors.New(dErrors.CodeValidation, "artifact is required")
	}
	if len(r.Artifact) > maxArtifactLength {
		return dErrors.New(dErrors.CodeValidation, "artifact is too large")
	}
	return nil
}
