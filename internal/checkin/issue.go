package checkin

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"checkin/internal/proof/codec"
	"checkin/internal/proof/commitment"
	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/requestcontext"
)

// Issue generates a proof for record at the request time and returns the
// artifact to hand to the holder. Invalid attributes return a validation
// error and no artifact.
func (s *Service) Issue(ctx context.Context, record models.AttributeRecord) (IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.Issue")
	defer span.End()

	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	proof, err := s.generator.Generate(record, now)
	if err != nil {
		outcome := "error"
		if dErrors.Is(err, models.ErrInvalidAttribute) {
			outcome = "invalid"
		}
		s.metrics.IncrementIssued(outcome)
		span.SetStatus(codes.Error, outcome)
		s.logger.WarnContext(ctx, "proof generation failed",
			"request_id", requestID,
			"error", err,
		)
		return IssueResult{}, err
	}

	artifact, err := codec.Encode(proof)
	if err != nil {
		s.metrics.IncrementIssued("error")
		span.RecordError(err)
		return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode proof")
	}
	if s.envelope != nil {
		artifact, err = s.envelope.Sign(artifact, proof.IssuedAt, s.ttl)
		if err != nil {
			s.metrics.IncrementIssued("error")
			span.RecordError(err)
			return IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign proof")
		}
	}

	fingerprint := commitment.Fingerprint(proof.Commitment)
	span.SetAttributes(
		attribute.String("checkin.commitment_hash", fingerprint),
		attribute.Bool("checkin.signed", s.envelope != nil),
	)
	s.metrics.IncrementIssued("issued")
	s.emit(ctx, audit.Event{
		Timestamp:             now,
		Action:                string(audit.EventProofIssued),
		Decision:              "issued",
		CommitmentFingerprint: fingerprint,
		RequestID:             requestID,
		ClientIP:              requestcontext.ClientIP(ctx),
	})
	s.logger.InfoContext(ctx, "proof issued",
		"request_id", requestID,
		"commitment_hash", fingerprint,
		"signed", s.envelope != nil,
	)

	return IssueResult{
		Artifact:  artifact,
		Proof:     proof,
		ExpiresAt: proof.ExpiresAt(s.ttl),
	}, nil
}
