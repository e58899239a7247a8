// Package checkin orchestrates proof issuance and presentation: it wraps the
// pure generator and verifier with the issuer envelope, the replay guard,
// audit events, metrics and tracing.
package checkin

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ReplayGuard,AuditPublisher,Envelope

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/checkin/metrics"
	"checkin/internal/proof/generator"
	"checkin/internal/proof/models"
	audit "checkin/pkg/platform/audit"
)

const tracerName = "checkin/internal/checkin"

// ReplayGuard records the first presentation of a commitment.
// A repeat within ttl returns sentinel.ErrAlreadyUsed.
type ReplayGuard interface {
	MarkUsed(ctx context.Context, commitment string, ttl time.Duration) error
}

// AuditPublisher receives one event per issuance and per check.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Envelope signs canonical proof text and opens signed artifacts.
type Envelope interface {
	Sign(encodedProof string, issuedAt models.Timestamp, ttl time.Duration) (string, error)
	Open(token string) (string, error)
}

// Service issues and checks proof artifacts.
type Service struct {
	generator *generator.Generator
	envelope  Envelope
	replay    ReplayGuard
	auditor   AuditPublisher
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator replaces the default crypto/rand backed generator.
func WithGenerator(g *generator.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.generator = g
		}
	}
}

// WithEnvelope signs issued artifacts and requires a valid signature on check.
func WithEnvelope(e Envelope) Option {
	return func(s *Service) {
		s.envelope = e
	}
}

// WithReplayGuard enables single-use consumption of accepted proofs.
func WithReplayGuard(r ReplayGuard) Option {
	return func(s *Service) {
		s.replay = r
	}
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(a AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithTTL sets the validity window. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records issuance and verification metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer for Issue and Check spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service. Without options it issues bare canonical
// artifacts and performs no replay protection.
func New(opts ...Option) *Service {
	s := &Service{
		generator: generator.New(),
		ttl:       models.DefaultTTL,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured validity window.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
