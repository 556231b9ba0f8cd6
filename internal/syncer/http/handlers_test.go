package synchttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/remote"
	"github.com/odyssey-erp/stocksync/internal/syncer"
)

type stubService struct {
	importErr   error
	exportRes   syncer.ExportResult
	exportErr   error
	deltaFrom   time.Time
	deltaTo     time.Time
	deltaCalls  int
	replayCalls int
	logsN       int
	cursor      time.Time
}

func (s *stubService) ImportFromRemote(context.Context) (syncer.ImportResult, error) {
	return syncer.ImportResult{Added: 2}, s.importErr
}

func (s *stubService) ExportToRemote(_ context.Context, itemID string) (syncer.ExportResult, error) {
	res := s.exportRes
	res.ItemID = itemID
	return res, s.exportErr
}

func (s *stubService) Reconcile(context.Context) (syncer.ReconcileResult, error) {
	return syncer.ReconcileResult{Added: 1, Removed: 3}, nil
}

func (s *stubService) SyncDeltaEvents(_ context.Context, start, end time.Time) (syncer.DeltaResult, error) {
	s.deltaCalls++
	s.deltaFrom, s.deltaTo = start, end
	return syncer.DeltaResult{Processed: 1}, nil
}

func (s *stubService) ReplayDeltaEvents(_ context.Context, start, end time.Time) (syncer.DeltaResult, error) {
	s.replayCalls++
	s.deltaFrom, s.deltaTo = start, end
	return syncer.DeltaResult{Processed: 2}, nil
}

func (s *stubService) CheckCorrespondenceStatus(context.Context) (syncer.CorrespondenceStatus, error) {
	return syncer.CorrespondenceStatus{Total: 3, Linked: 2, Unlinked: 1}, nil
}

func (s *stubService) RecentLogs(_ context.Context, n int) ([]auditlog.Entry, error) {
	s.logsN = n
	return []auditlog.Entry{{ID: "1", Action: "import", Status: auditlog.StatusSuccess}}, nil
}

func (s *stubService) Cursor(context.Context) (time.Time, error) {
	return s.cursor, nil
}

func newRouter(svc SyncService) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "192.0.2.10:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestImportReturnsCounts(t *testing.T) {
	rr := do(t, newRouter(&stubService{}), http.MethodPost, "/sync/import", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"added":2,"linked":0,"skipped":0,"errored":0,"warnings":0}`, rr.Body.String())
}

func TestConcurrentSyncMapsToConflict(t *testing.T) {
	rr := do(t, newRouter(&stubService{importErr: syncer.ErrConcurrentSync}), http.MethodPost, "/sync/import", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, float64(http.StatusConflict), problem["status"])
	require.Contains(t, problem["detail"], "another sync workflow")
}

func TestExportStatuses(t *testing.T) {
	svc := &stubService{exportRes: syncer.ExportResult{RemoteID: "42", Created: true}}
	rr := do(t, newRouter(svc), http.MethodPost, "/sync/export/a", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"remoteId":"42"`)
	require.Contains(t, rr.Body.String(), `"itemId":"a"`)

	svc = &stubService{exportErr: syncer.ErrItemNotFound}
	rr = do(t, newRouter(svc), http.MethodPost, "/sync/export/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	svc = &stubService{exportErr: &remote.GatewayError{Method: "POST", Endpoint: "/inventory",
		Attempts: []remote.Attempt{{Path: "direct", Err: &remote.AuthError{Path: "direct", Status: 401}}}}}
	rr = do(t, newRouter(svc), http.MethodPost, "/sync/export/a", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestDeltaValidatesWindow(t *testing.T) {
	svc := &stubService{}
	h := newRouter(svc)

	rr := do(t, h, http.MethodPost, "/sync/delta", `{"from":"2026-05-02T00:00:00Z","to":"2026-05-01T00:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Zero(t, svc.deltaCalls)

	rr = do(t, h, http.MethodPost, "/sync/delta", `{"since":"yesterday"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/sync/delta", `{"from":"2026-05-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, svc.deltaCalls)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), svc.deltaFrom.UTC())
	require.True(t, svc.deltaTo.IsZero())

	rr = do(t, h, http.MethodPost, "/sync/delta", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, svc.deltaCalls)
}

func TestDeltaReplay(t *testing.T) {
	svc := &stubService{}
	h := newRouter(svc)

	rr := do(t, h, http.MethodPost, "/sync/delta", `{"replay":true}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Zero(t, svc.replayCalls)

	rr = do(t, h, http.MethodPost, "/sync/delta", `{"from":"2026-05-01T00:00:00Z","replay":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, svc.replayCalls)
	require.Zero(t, svc.deltaCalls)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), svc.deltaFrom.UTC())
	require.Contains(t, rr.Body.String(), `"processed":2`)
}

func TestStatusAndLogs(t *testing.T) {
	svc := &stubService{cursor: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	h := newRouter(svc)

	rr := do(t, h, http.MethodGet, "/sync/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"total":3,"linked":2,"unlinked":1,"cursor":"2026-05-01T00:00:00Z"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/sync/logs?n=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 5, svc.logsN)
	require.Contains(t, rr.Body.String(), `"action":"import"`)

	rr = do(t, h, http.MethodGet, "/sync/logs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, defaultLogCount, svc.logsN)

	rr = do(t, h, http.MethodGet, "/sync/logs?n=500", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodGet, "/sync/logs?n=x", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
