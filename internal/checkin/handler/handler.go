package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"checkin/internal/checkin"
	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

// Service defines the check-in operations used by the handler.
type Service interface {
	Issue(ctx context.Context, record models.AttributeRecord) (checkin.IssueResult, error)
	Check(ctx context.Context, artifact string) (checkin.CheckResult, error)
}

// Handler wires proof endpoints to the check-in service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a proof handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts proof endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proofs", h.HandleIssue)
	r.Post("/proofs/verify", h.HandleVerify)
}

// HandleIssue handles POST /proofs.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Issue(ctx, req.Record())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "issue request served",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, IssueFromResult(result))
}

// HandleVerify handles POST /proofs/verify. Rejections are 200 responses with
// accepted=false; only malformed artifacts map to an error status.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Check(ctx, req.Artifact)
	if err != nil {
		if !dErrors.Is(err, models.ErrMalformedProof) {
			h.logger.ErrorContext(ctx, "verification failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyFromResult(result))
}
