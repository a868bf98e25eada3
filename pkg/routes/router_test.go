package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/inject"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/ratelimit"
	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/store/memstore"
)

const tenant = "tenant-1"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	s := memstore.New()

	for _, p := range []struct{ id, name, email string }{
		{"p1", "John Smith", "john@example.com"},
		{"p2", "Jon Smith", "JOHN@example.com"},
		{"p3", "Mary Jones", "mary@jones.org"},
	} {
		rec := &models.Person{FullName: models.StringPtr(p.name), Email: models.StringPtr(p.email)}
		rec.ID, rec.TenantID = p.id, tenant
		require.NoError(t, s.Put(rec))
	}

	detector := detection.NewDetector(s, matching.NewScorer(matching.AlgorithmLevenshtein), nil, detection.DefaultConfig(), logger)
	orch := merging.NewOrchestrator(s, manifest.Default(), logger, merging.WithScanInvalidator(detector))

	containerID, err := inject.NewContainer(inject.Services{Logger: logger, Detector: detector, Orchestrator: orch})
	require.NoError(t, err)

	return NewRouter(Dependencies{
		ContainerID:      containerID,
		ScanLimiter:      ratelimit.NewTenantLimiter(1, 1),
		Health:           health.NewChecker("test"),
		DefaultThreshold: 70,
		Logger:           logger,
	})
}

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var asUser = map[string]string{middleware.HeaderTenantID: tenant, middleware.HeaderUserID: "user-1"}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestFind(t *testing.T) {
	e := newServer(t)
	body := `{"attributes":{"name":"John Smith","identifier":"john@example.com"},"exclude_id":"p1"}`

	rec := do(e, http.MethodPost, "/v1/duplicates/person/find", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/duplicates/person/find", body, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[duplicates.FindResponse](t, rec)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "p2", resp.Matches[0].CandidateID)
	assert.Equal(t, 95, resp.Matches[0].Score)

	rec = do(e, http.MethodPost, "/v1/duplicates/deal/find", body, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/duplicates/person/find", `{"attributes":{"name":"x"},"threshold":101}`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScan(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodGet, "/v1/duplicates/person/scan?page=x", "", asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/duplicates/person/scan?threshold=70", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[models.DuplicatePairPage](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 3, page.ScannedRecords)

	rec = do(e, http.MethodGet, "/v1/duplicates/person/scan?threshold=70", "", asUser)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMerge(t *testing.T) {
	e := newServer(t)
	body := `{"entity_kind":"person","survivor_id":"p1","loser_id":"p2","field_selections":{"full_name":"John Smith"}}`

	rec := do(e, http.MethodPost, "/v1/merges", body, map[string]string{middleware.HeaderTenantID: tenant})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[middleware.ErrorResponse](t, rec)
	assert.Equal(t, "invalid_request", errResp.Meta["error_kind"])

	rec = do(e, http.MethodPost, "/v1/merges", body, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.MergeResult](t, rec)
	assert.Equal(t, "p1", result.SurvivorID)
	require.NotEmpty(t, result.AuditID)

	rec = do(e, http.MethodPost, "/v1/merges", body, asUser)
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp = decode[middleware.ErrorResponse](t, rec)
	assert.Equal(t, "already_merged", errResp.Meta["error_kind"])

	rec = do(e, http.MethodGet, "/v1/merges/audit?record_id=p2", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	audits := decode[[]models.MergeAuditLog](t, rec)
	require.Len(t, audits, 1)
	assert.Equal(t, result.AuditID, audits[0].ID)

	rec = do(e, http.MethodGet, "/v1/merges/audit", "", asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/merges/audit/"+result.AuditID, "", asUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/v1/merges/audit/"+result.AuditID, "", map[string]string{middleware.HeaderTenantID: "tenant-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergedRecordLeavesDetection(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/v1/merges", `{"entity_kind":"person","survivor_id":"p1","loser_id":"p2"}`, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/v1/duplicates/person/find", `{"attributes":{"name":"John Smith","identifier":"john@example.com"},"exclude_id":"p1"}`, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[duplicates.FindResponse](t, rec).Matches)
}

func TestOperationalRoutes(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/metrics", "", nil).Code)
}

func TestUnknownContainer(t *testing.T) {
	e := NewRouter(Dependencies{
		ContainerID: "missing",
		Health:      health.NewChecker("test"),
		Logger:      ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
	})

	rec := do(e, http.MethodGet, "/v1/merges/audit?record_id=p2", "", asUser)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
