package checkin_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/checkin"
	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/mocks"
	"checkin/internal/proof/codec"
	"checkin/internal/proof/issuer"
	"checkin/internal/proof/models"
	"checkin/internal/proof/store/replay"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	auditmemory "checkin/pkg/platform/audit/store/memory"
	"checkin/pkg/platform/audit/publisher"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

var issuedAt = time.UnixMilli(1_700_000_000_000)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	auditStore *auditmemory.InMemoryStore
	metrics    *metrics.Metrics
	service    *checkin.Service
	record     models.AttributeRecord
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.service = checkin.New(
		checkin.WithReplayGuard(replay.NewInMemoryStore()),
		checkin.WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
		checkin.WithMetrics(s.metrics),
	)
	s.record = models.AttributeRecord{Name: "Asha", Age: 25, IDFragment: "1234", HasPaymentMethod: true}
}

func at(t time.Time) context.Context {
	return requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), t)
}

func (s *ServiceSuite) issue(svc *checkin.Service) checkin.IssueResult {
	res, err := svc.Issue(at(issuedAt), s.record)
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestIssue() {
	s.Run("returns canonical artifact and expiry", func() {
		res := s.issue(s.service)

		decoded, err := codec.Decode(res.Artifact)
		s.Require().NoError(err)
		s.Equal(res.Proof, decoded)
		s.Equal(models.TimestampOf(issuedAt), res.Proof.IssuedAt)
		s.Equal(models.TimestampOf(issuedAt.Add(models.DefaultTTL)), res.ExpiresAt)
		s.NotContains(res.Artifact, "Asha")
	})

	s.Run("invalid attributes are a validation error", func() {
		s.auditStore.Clear()
		_, err := s.service.Issue(at(issuedAt), models.AttributeRecord{Name: " ", Age: 25, IDFragment: "1234"})
		s.Require().Error(err)
		s.True(errors.Is(err, models.ErrInvalidAttribute))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		events, _ := s.auditStore.ListAll(context.Background())
		s.Empty(events)
	})

	s.Run("emits audit event without attributes", func() {
		s.auditStore.Clear()
		s.issue(s.service)

		events, err := s.auditStore.ListByAction(context.Background(), audit.EventProofIssued)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("req-1", events[0].RequestID)
		s.Equal(audit.CategoryOperations, events[0].Category)
		s.Len(events[0].CommitmentFingerprint, 12)
	})

	s.Run("counts outcomes", func() {
		s.GreaterOrEqual(testutil.ToFloat64(s.metrics.Issued.WithLabelValues("issued")), 1.0)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Issued.WithLabelValues("invalid")))
	})
}

func (s *ServiceSuite) TestCheck() {
	s.Run("happy path then replay", func() {
		res := s.issue(s.service)

		first, err := s.service.Check(at(issuedAt.Add(100*time.Millisecond)), res.Artifact)
		s.Require().NoError(err)
		s.True(first.Accepted)
		s.Equal(models.ReasonAccepted, first.Reason)
		s.Require().NotNil(first.Claims)
		s.True(first.Claims.AgeOver18)
		s.Equal(100*time.Millisecond, *first.Age)

		second, err := s.service.Check(at(issuedAt.Add(200*time.Millisecond)), res.Artifact)
		s.Require().NoError(err)
		s.False(second.Accepted)
		s.Equal(models.ReasonReplayed, second.Reason)
		s.Nil(second.Claims)
		s.Equal(first.CommitmentFingerprint, second.CommitmentFingerprint)

		rejected, _ := s.auditStore.ListByAction(context.Background(), audit.EventProofRejected)
		s.Require().NotEmpty(rejected)
		s.Equal(audit.CategorySecurity, rejected[len(rejected)-1].Category)
	})

	s.Run("expired proofs are not consumed", func() {
		res := s.issue(s.service)

		late, err := s.service.Check(at(issuedAt.Add(10*time.Minute)), res.Artifact)
		s.Require().NoError(err)
		s.Equal(models.ReasonExpired, late.Reason)
		s.Nil(late.Claims)
	})

	s.Run("underage holder fails the predicate", func() {
		s.record.Age = 16
		res := s.issue(s.service)

		out, err := s.service.Check(at(issuedAt.Add(time.Second)), res.Artifact)
		s.Require().NoError(err)
		s.Equal(models.ReasonPredicateNotSatisfied, out.Reason)
	})

	s.Run("malformed artifact returns result and error", func() {
		for _, artifact := range []string{"not json", "{}", ""} {
			out, err := s.service.Check(at(issuedAt), artifact)
			s.Require().Error(err, artifact)
			s.True(errors.Is(err, models.ErrMalformedProof))
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
			s.Equal(models.ReasonMalformed, out.Reason)
			s.Empty(out.CommitmentFingerprint)
		}
		s.Equal(3.0, testutil.ToFloat64(s.metrics.Verifications.WithLabelValues("malformed")))
	})
}

func (s *ServiceSuite) TestCheckWithConfiguredTTL() {
	svc := checkin.New(checkin.WithTTL(time.Minute))
	res := s.issue(svc)
	s.Equal(models.TimestampOf(issuedAt.Add(time.Minute)), res.ExpiresAt)

	within, err := svc.Check(at(issuedAt.Add(time.Minute)), res.Artifact)
	s.Require().NoError(err)
	s.True(within.Accepted)

	beyond, err := svc.Check(at(issuedAt.Add(time.Minute+time.Millisecond)), res.Artifact)
	s.Require().NoError(err)
	s.Equal(models.ReasonExpired, beyond.Reason)
}

func (s *ServiceSuite) TestReplayGuard() {
	s.Run("consumes for the remaining window", func() {
		guard := mocks.NewMockReplayGuard(s.ctrl)
		svc := checkin.New(checkin.WithReplayGuard(guard))
		res := s.issue(svc)

		guard.EXPECT().
			MarkUsed(gomock.Any(), res.Proof.Commitment, 4*time.Minute+time.Millisecond).
			Return(nil)

		out, err := svc.Check(at(issuedAt.Add(time.Minute)), res.Artifact)
		s.Require().NoError(err)
		s.True(out.Accepted)
	})

	s.Run("store failure fails closed", func() {
		guard := mocks.NewMockReplayGuard(s.ctrl)
		svc := checkin.New(checkin.WithReplayGuard(guard))
		res := s.issue(svc)

		guard.EXPECT().MarkUsed(gomock.Any(), gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		out, err := svc.Check(at(issuedAt.Add(time.Second)), res.Artifact)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.True(errors.Is(err, sentinel.ErrUnavailable))
		s.False(out.Accepted)
	})

	s.Run("rejected proofs never reach the guard", func() {
		guard := mocks.NewMockReplayGuard(s.ctrl)
		svc := checkin.New(checkin.WithReplayGuard(guard))
		s.record.HasPaymentMethod = false
		res := s.issue(svc)

		guard.EXPECT().MarkUsed(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		out, err := svc.Check(at(issuedAt.Add(time.Second)), res.Artifact)
		s.Require().NoError(err)
		s.Equal(models.ReasonPredicateNotSatisfied, out.Reason)
	})
}

func (s *ServiceSuite) TestEnvelope() {
	signer, err := issuer.New(strings.Repeat("k", issuer.MinKeyLength), "venue-a")
	s.Require().NoError(err)
	svc := checkin.New(checkin.WithEnvelope(signer))

	s.Run("signed artifacts verify", func() {
		res := s.issue(svc)
		s.False(strings.HasPrefix(res.Artifact, "{"))

		out, err := svc.Check(at(issuedAt.Add(time.Second)), res.Artifact)
		s.Require().NoError(err)
		s.True(out.Accepted)
	})

	s.Run("bare artifacts are untrusted", func() {
		bare := s.issue(checkin.New())

		out, err := svc.Check(at(issuedAt.Add(time.Second)), bare.Artifact)
		s.Require().NoError(err)
		s.Equal(models.ReasonUntrustedIssuer, out.Reason)
	})

	s.Run("foreign issuer is untrusted", func() {
		other, err := issuer.New(strings.Repeat("z", issuer.MinKeyLength), "venue-b")
		s.Require().NoError(err)
		foreign := s.issue(checkin.New(checkin.WithEnvelope(other)))

		out, err := svc.Check(at(issuedAt.Add(time.Second)), foreign.Artifact)
		s.Require().NoError(err)
		s.Equal(models.ReasonUntrustedIssuer, out.Reason)
	})

	s.Run("signing failure is internal", func() {
		envelope := mocks.NewMockEnvelope(s.ctrl)
		envelope.EXPECT().Sign(gomock.Any(), gomock.Any(), models.DefaultTTL).Return("", errors.New("hsm offline"))

		_, err := checkin.New(checkin.WithEnvelope(envelope)).Issue(at(issuedAt), s.record)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestAuditFailureDoesNotBlock() {
	auditor := mocks.NewMockAuditPublisher(s.ctrl)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("disk full")).Times(2)
	svc := checkin.New(checkin.WithAuditPublisher(auditor))

	res := s.issue(svc)
	out, err := svc.Check(at(issuedAt.Add(time.Second)), res.Artifact)
	s.Require().NoError(err)
	s.True(out.Accepted)
}

func (s *ServiceSuite) TestNilObservabilityOptionsKeepDefaults() {
	svc := checkin.New(checkin.WithLogger(nil), checkin.WithTracer(nil), checkin.WithMetrics(nil))
	res := s.issue(svc)

	out, err := svc.Check(at(issuedAt.Add(time.Second)), res.Artifact)
	s.Require().NoError(err)
	s.True(out.Accepted)
}
