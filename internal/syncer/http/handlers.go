package synchttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/platform/httpx"
	"github.com/odyssey-erp/stocksync/internal/remote"
	"github.com/odyssey-erp/stocksync/internal/syncer"
)

const defaultLogCount = 20

// SyncService is the orchestrator contract used by the handler.
type SyncService interface {
	ImportFromRemote(ctx context.Context) (syncer.ImportResult, error)
	ExportToRemote(ctx context.Context, itemID string) (syncer.ExportResult, error)
	Reconcile(ctx context.Context) (syncer.ReconcileResult, error)
	SyncDeltaEvents(ctx context.Context, start, end time.Time) (syncer.DeltaResult, error)
	ReplayDeltaEvents(ctx context.Context, start, end time.Time) (syncer.DeltaResult, error)
	CheckCorrespondenceStatus(ctx context.Context) (syncer.CorrespondenceStatus, error)
	RecentLogs(ctx context.Context, n int) ([]auditlog.Entry, error)
	Cursor(ctx context.Context) (time.Time, error)
}

// Handler exposes the sync workflows over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  SyncService
	validate *validator.Validate
}

// NewHandler constructs the sync HTTP handler.
func NewHandler(logger *slog.Logger, service SyncService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// deltaRequest selects the window. Replay ignores the cursor and needs From.
type deltaRequest struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to" validate:"omitempty,gtefield=From"`
	Replay bool      `json:"replay"`
}

type statusResponse struct {
	syncer.CorrespondenceStatus
	Cursor *time.Time `json:"cursor,omitempty"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ImportFromRemote(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	res, err := h.service.ExportToRemote(r.Context(), itemID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Reconcile(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleDelta(w http.ResponseWriter, r *http.Request) {
	var req deltaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Replay && req.From.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "replay needs from")
		return
	}
	run := h.service.SyncDeltaEvents
	if req.Replay {
		run = h.service.ReplayDeltaEvents
	}
	res, err := run(r.Context(), req.From, req.To)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.CheckCorrespondenceStatus(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := statusResponse{CorrespondenceStatus: st}
	cursor, err := h.service.Cursor(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !cursor.IsZero() {
		resp.Cursor = &cursor
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	n, err := httpx.IntQuery(r, "n", defaultLogCount)
	if err == nil && (n < 1 || n > auditlog.DefaultCapacity) {
		err = httpx.Mark(httpx.ErrValidation, errors.New("n must be between 1 and 100"))
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.RecentLogs(r.Context(), n)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// respondError classifies workflow failures onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		auth      *remote.AuthError
		rejected  *remote.RemoteValidationError
		invalid   *remote.ValidationError
		gatewayEr *remote.GatewayError
	)
	switch {
	case errors.Is(err, syncer.ErrConcurrentSync):
		err = httpx.Mark(httpx.ErrConflict, err)
	case errors.Is(err, syncer.ErrItemNotFound):
		err = httpx.Mark(httpx.ErrNotFound, err)
	case errors.Is(err, syncer.ErrInvalidRange),
		errors.Is(err, inventory.ErrTitleRequired),
		errors.As(err, &invalid):
		err = httpx.Mark(httpx.ErrValidation, err)
	case errors.Is(err, inventory.ErrDuplicateRemoteID):
		err = httpx.Mark(httpx.ErrConflict, err)
	case errors.As(err, &auth), errors.As(err, &rejected), errors.As(err, &gatewayEr):
		err = httpx.Mark(httpx.ErrUpstream, err)
	default:
		h.logger.Error("sync request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
