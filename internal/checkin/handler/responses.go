package handler

import (
	"checkin/internal/checkin"
	"checkin/internal/proof/models"
)

// IssueResponse is the HTTP response for POST /v1/proofs. It never echoes
// the submitted attributes.
type IssueResponse struct {
	Artifact  string `json:"artifact"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// IssueFromResult converts an issuance result to its HTTP response.
func IssueFromResult(result checkin.IssueResult) *IssueResponse {
	return &IssueResponse{
		Artifact:  result.Artifact,
		IssuedAt:  int64(result.Proof.IssuedAt),
		ExpiresAt: int64(result.ExpiresAt),
	}
}

// VerifyResponse is the HTTP response for POST /v1/proofs/verify.
type VerifyResponse struct {
	Accepted bool            `json:"accepted"`
	Reason   string          `json:"reason"`
	Claims   *ClaimsResponse `json:"claims,omitempty"`
	IssuedAt *int64          `json:"issued_at,omitempty"`
	AgeMs    *int64          `json:"age_ms,omitempty"`
}

// ClaimsResponse is the claims portion of an accepted verification.
type ClaimsResponse struct {
	HasValidID          bool `json:"has_valid_id"`
	AgeOver18           bool `json:"age_over_18"`
	HasPaymentMethod    bool `json:"has_payment_method"`
	NationalityVerified bool `json:"nationality_verified"`
}

// VerifyFromResult converts a check result to its HTTP response.
func VerifyFromResult(result checkin.CheckResult) *VerifyResponse {
	resp := &VerifyResponse{
		Accepted: result.Accepted,
		Reason:   string(result.Reason),
	}
	if result.Claims != nil {
		resp.Claims = claimsResponse(*result.Claims)
	}
	if result.IssuedAt != nil {
		issuedAt := int64(*result.IssuedAt)
		resp.IssuedAt = &issuedAt
	}
	if result.Age != nil {
		ageMs := result.Age.Milliseconds()
		resp.AgeMs = &ageMs
	}
	return resp
}

func claimsResponse(c models.Claims) *ClaimsResponse {
	return &ClaimsResponse{
		HasValidID:          c.HasValidID,
		AgeOver18:           c.AgeOver18,
		HasPaymentMethod:    c.HasPaymentMethod,
		NationalityVerified: c.NationalityVerified,
	}
}
