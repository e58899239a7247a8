package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"checkin/internal/proof/codec"
	"checkin/internal/proof/commitment"
	"checkin/internal/proof/models"
	"checkin/internal/proof/verifier"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

// Check verifies a presented artifact at the request time and, when it is
// accepted, consumes it so a second presentation is rejected as replayed.
//
// A malformed artifact returns a malformed rejection together with a
// bad_request error. A replay guard failure returns an internal error and no
// acceptance.
func (s *Service) Check(ctx context.Context, artifact string) (CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.Check")
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)
	requestID := requestcontext.RequestID(ctx)
	defer func() { s.metrics.ObserveCheckLatency(time.Since(start)) }()

	result, err := s.evaluate(ctx, strings.TrimSpace(artifact), now)
	if err != nil && !dErrors.Is(err, models.ErrMalformedProof) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check failed")
		s.logger.ErrorContext(ctx, "proof check failed",
			"request_id", requestID,
			"commitment_hash", result.CommitmentFingerprint,
			"error", err,
		)
		return CheckResult{}, err
	}

	span.SetAttributes(
		attribute.String("checkin.reason", string(result.Reason)),
		attribute.Bool("checkin.accepted", result.Accepted),
	)
	s.metrics.IncrementVerification(string(result.Reason))
	if result.Accepted && result.Age != nil {
		s.metrics.ObserveAcceptedAge(*result.Age)
	}

	event := audit.Event{
		Timestamp:             now,
		Action:                string(audit.EventProofRejected),
		Decision:              "rejected",
		Reason:                string(result.Reason),
		CommitmentFingerprint: result.CommitmentFingerprint,
		RequestID:             requestID,
		ClientIP:              requestcontext.ClientIP(ctx),
	}
	if result.Accepted {
		event.Action = string(audit.EventProofAccepted)
		event.Decision = "accepted"
	}
	s.emit(ctx, event)

	attrs := []any{
		"request_id", requestID,
		"reason", result.Reason,
		"commitment_hash", result.CommitmentFingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if audit.CategoryFor(audit.AuditEvent(event.Action), event.Reason) == audit.CategorySecurity {
		s.logger.WarnContext(ctx, "proof rejected", attrs...)
	} else {
		s.logger.InfoContext(ctx, "proof checked", attrs...)
	}

	return result, err
}

func (s *Service) evaluate(ctx context.Context, artifact string, now time.Time) (CheckResult, error) {
	payload := artifact
	if s.envelope != nil {
		opened, err := s.envelope.Open(artifact)
		if err != nil {
			s.logger.DebugContext(ctx, "issuer envelope rejected", "error", err)
			return CheckResult{VerificationResult: models.Rejected(models.ReasonUntrustedIssuer)}, nil
		}
		payload = opened
	}

	proof, err := codec.Decode(payload)
	if err != nil {
		return CheckResult{VerificationResult: models.Rejected(models.ReasonMalformed)}, err
	}

	result := CheckResult{
		VerificationResult:    verifier.Evaluate(proof, now, s.ttl),
		CommitmentFingerprint: commitment.Fingerprint(proof.Commitment),
	}
	if !result.Accepted || s.replay == nil {
		return result, nil
	}

	// Keep the marker until the proof could no longer be accepted anyway.
	remaining := s.ttl - *result.Age + time.Millisecond
	if err := s.replay.MarkUsed(ctx, proof.Commitment, remaining); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			result.VerificationResult = models.Rejected(models.ReasonReplayed)
			return result, nil
		}
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "replay guard unavailable")
	}
	return result, nil
}
