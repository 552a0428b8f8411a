package apihttp_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "sites-spectral/internal/api/http"
	"sites-spectral/internal/audit"
	"sites-spectral/internal/auth"
	"sites-spectral/internal/export"
	"sites-spectral/internal/masterdata/application"
	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/masterdata/infrastructure/memory"
)

var (
	jwtSecret    = []byte("test-jwt-secret")
	importSecret = []byte("test-import-secret")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	handler http.Handler
	catalog *application.Catalog
	users   *auth.MemoryUserRepository
	audit   *audit.MemoryRepository
	issuer  *auth.TokenIssuer
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore(memory.WithClock(clk.Now))
	catalog, err := application.NewCatalog(store)
	require.NoError(t, err)
	catalog.WithClock(clk.Now)

	users := auth.NewMemoryUserRepository()
	issuer, err := auth.NewTokenIssuer(jwtSecret, time.Hour)
	require.NoError(t, err)
	login, err := auth.NewLoginService(users, issuer)
	require.NoError(t, err)

	auditRepo := audit.NewMemoryRepository()
	server, err := apihttp.NewServer(apihttp.Deps{
		Catalog:       catalog,
		Login:         login,
		Limiter:       audit.NewRateLimiter(auditRepo, audit.DefaultLimits(), log).WithClock(clk.Now),
		Recorder:      audit.NewRecorder(auditRepo, log).WithClock(clk.Now),
		Log:           log,
		JWTSecret:     jwtSecret,
		ImportSecret:  importSecret,
		ImportMaxSkew: 5 * time.Minute,
		Version:       "test",
		Now:           clk.Now,
	})
	require.NoError(t, err)
	return &fixture{handler: server.Handler(), catalog: catalog, users: users, audit: auditRepo, issuer: issuer, clock: clk}
}

func (f *fixture) token(t *testing.T, user auth.User) string {
	t.Helper()
	token, _, err := f.issuer.Issue(user)
	require.NoError(t, err)
	return token
}

func (f *fixture) admin(t *testing.T) string {
	return f.token(t, auth.User{Username: "alice", Role: auth.RoleAdmin})
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed builds SVB with two platforms, five instruments and one ROI, plus ANS.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := auth.WithClaims(context.Background(), &auth.Claims{Username: "seed", Role: string(auth.RoleAdmin)})
	create := func(kind masterdata.ResourceKind, input map[string]any) {
		_, err := f.catalog.Create(ctx, kind, input)
		require.NoError(t, err)
	}
	create(masterdata.KindStation, map[string]any{"display_name": "Svartberget", "acronym": "SVB"})
	create(masterdata.KindStation, map[string]any{"display_name": "Abisko", "acronym": "ANS"})
	create(masterdata.KindPlatform, map[string]any{"station_id": "SVB", "display_name": "Mire tower", "location_code": "PL01", "ecosystem_code": "MIR"})
	create(masterdata.KindPlatform, map[string]any{"station_id": "SVB", "display_name": "Forest tower", "location_code": "BL01", "ecosystem_code": "FOR"})
	create(masterdata.KindPlatform, map[string]any{"station_id": "ANS", "display_name": "Birch", "location_code": "PL01", "ecosystem_code": "FOR"})
	for i := 0; i < 3; i++ {
		create(masterdata.KindInstrument, map[string]any{"platform_id": "SVB_MIR_PL01", "instrument_type": "phenocam"})
	}
	create(masterdata.KindInstrument, map[string]any{"platform_id": "SVB_FOR_BL01", "instrument_type": "ndvi", "description": "south, facing"})
	create(masterdata.KindInstrument, map[string]any{"platform_id": "SVB_FOR_BL01", "instrument_type": "multispectral"})
	create(masterdata.KindROI, map[string]any{"instrument_id": "SVB_MIR_PL01_PHE01", "points_json": "[[0,0],[10,0],[10,10]]"})
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get(apihttp.HeaderRequestID))
}

func TestLoginAndVerify(t *testing.T) {
	f := newFixture(t)
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, f.users.CreateUser(context.Background(), &auth.User{
		Username: "svb", PasswordHash: hash, Role: auth.RoleStation, StationID: 1,
		StationAcronym: "SVB", StationNormalizedName: "svartberget", Active: true,
	}))

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "svb", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthenticated", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "svb"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "svb", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "station", user["role"])
	assert.Equal(t, "svartberget", user["station_normalized_name"])

	rec = f.do(t, http.MethodGet, "/api/auth/verify", body["token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = f.do(t, http.MethodGet, "/api/auth/verify", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/stations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthenticated", decode(t, rec)["error"])
}

func TestCreateConflictEnvelope(t *testing.T) {
	f := newFixture(t)
	token := f.admin(t)

	rec := f.do(t, http.MethodPost, "/api/stations", token, map[string]any{"display_name": "Alpha", "acronym": "ABC"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "alpha", decode(t, rec)["normalized_name"])

	rec = f.do(t, http.MethodPost, "/api/stations", token, map[string]any{"display_name": "Beta", "acronym": "ABC"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Conflict", body["error"])
	assert.Contains(t, body["conflicts"], map[string]any{"field": "acronym", "value": "ABC"})
	suggestions := body["suggestions"].(map[string]any)
	assert.NotEqual(t, "ABC", suggestions["acronym"])
	assert.NotEmpty(t, suggestions["acronym"])

	rec = f.do(t, http.MethodPost, "/api/stations", token, map[string]any{"display_name": "Gamma", "acronym": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", decode(t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/stations/nonexistent", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	token := f.token(t, auth.User{Username: "viewer", Role: auth.RoleReadonly})

	first := f.do(t, http.MethodGet, "/api/instruments/SVB_MIR_PL01_PHE01", token, nil)
	second := f.do(t, http.MethodGet, "/api/instruments/SVB_MIR_PL01_PHE01", token, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	rec := f.do(t, http.MethodGet, "/api/stations?summary=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []masterdata.StationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)

	rec = f.do(t, http.MethodDelete, "/api/rois/1", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStationUserWritesOnlyOwnStation(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	token := f.token(t, auth.User{
		Username: "svb", Role: auth.RoleStation, StationID: 1,
		StationAcronym: "SVB", StationNormalizedName: "svartberget",
	})

	rec := f.do(t, http.MethodPut, "/api/platforms/SVB_MIR_PL01", token, map[string]any{
		"display_name": "Mire mast", "location_code": "PL99",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Mire mast", body["display_name"])
	assert.Equal(t, "PL01", body["location_code"])

	rec = f.do(t, http.MethodPut, "/api/platforms/ANS_FOR_PL01", token, map[string]any{"display_name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "InsufficientPermissions", decode(t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/admin/stations", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/fields/platforms", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode(t, rec)
	assert.Contains(t, fields["common_fields"], "display_name")
	assert.Empty(t, fields["admin_only_fields"])
}

func TestAdminCascadeGate(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	token := f.admin(t)

	rec := f.do(t, http.MethodDelete, "/api/admin/stations/svartberget", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "DependencyBlocked", body["error"])
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, map[string]any{"platforms": 2.0, "instruments": 5.0, "rois": 1.0}, deps["summary"])
	assert.Len(t, deps["cascade_preview"], 3)

	rec = f.do(t, http.MethodDelete, "/api/admin/stations/svartberget?force_cascade=true&backup=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, map[string]any{"platforms": 2.0, "instruments": 5.0, "rois": 1.0}, body["dependencies_deleted"])
	backup := body["backup"].(map[string]any)
	assert.Len(t, backup["instruments"], 5)

	rec = f.do(t, http.MethodGet, "/api/stations/svartberget", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entries := f.audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "admin_delete", entries[0].Action)
	assert.Contains(t, string(entries[0].Metadata), "DependencyBlocked")
	assert.Equal(t, "svartberget", entries[1].Station)
	assert.Equal(t, "delete station svartberget", entries[1].Description)
}

func TestAdminDeleteRateLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := auth.WithClaims(context.Background(), &auth.Claims{Username: "seed", Role: string(auth.RoleAdmin)})
	var ids []int64
	for i := 0; i < 12; i++ {
		roi, err := f.catalog.Create(ctx, masterdata.KindROI, map[string]any{
			"instrument_id": "SVB_MIR_PL01_PHE02", "points_json": "[[0,0],[1,0],[1,1]]",
		})
		require.NoError(t, err)
		ids = append(ids, roi.Ref().ID)
	}
	token := f.admin(t)
	path := func(i int) string { return "/api/admin/rois/" + strconv.FormatInt(ids[i], 10) }

	for i := 0; i < 10; i++ {
		rec := f.do(t, http.MethodDelete, path(i), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := f.do(t, http.MethodDelete, path(10), token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "RateLimited", body["error"])
	assert.Equal(t, 10.0, body["current_count"])
	assert.Equal(t, 10.0, body["limit"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = f.do(t, http.MethodPut, "/api/admin/rois/"+strconv.FormatInt(ids[10], 10), token, map[string]any{"comment": "still allowed"})
	assert.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(5*time.Minute + time.Second)
	rec = f.do(t, http.MethodDelete, path(11), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExportStationCSV(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	token := f.token(t, auth.User{Username: "viewer", Role: auth.RoleReadonly})

	rec := f.do(t, http.MethodGet, "/api/export/station/SVB", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "svartberget_export_20250601.csv")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, export.StationCSVHeader, records[0])
	assert.Contains(t, rec.Body.String(), `"south, facing"`)

	rec = f.do(t, http.MethodGet, "/api/export/station/SVB?format=json", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode(t, rec)["_export_meta"].(map[string]any)
	assert.Equal(t, "viewer", meta["exported_by"])
	assert.Equal(t, 5.0, meta["instrument_count"])

	rec = f.do(t, http.MethodGet, "/api/export/station/SVB?format=xml", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportRequiresSignature(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	payload, err := json.Marshal(map[string]any{
		"platforms":   []map[string]any{{"location_code": "PL02", "ecosystem_code": "MIR"}},
		"instruments": []map[string]any{{"platform": "SVB_MIR_PL02", "instrument_type": "phenocam"}},
		"rois":        []map[string]any{{"instrument": "SVB_MIR_PL02_PHE01", "polygon_points": "[[0,0],[1,0],[1,1]]", "color": "#0000FF"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/import/svartberget", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req = httptest.NewRequest(http.MethodPost, "/api/import/svartberget", bytes.NewReader(payload))
	req.Header.Set(auth.HeaderImportTimestamp, ts)
	req.Header.Set(auth.HeaderImportSignature, auth.ComputeImportSignature(importSecret, ts, payload))
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, []any{"SVB_MIR_PL02"}, body["platforms_created"])
	assert.Equal(t, []any{"SVB_MIR_PL02_PHE01"}, body["instruments_created"])
	assert.Equal(t, []any{"SVB_MIR_PL02_PHE01/ROI_01"}, body["rois_created"])
	assert.Empty(t, body["errors"])
}

func TestAdminWritesOnPlainRoutesAreAuditedAndLimited(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := auth.WithClaims(context.Background(), &auth.Claims{Username: "seed", Role: string(auth.RoleAdmin)})
	var ids []int64
	for i := 0; i < 11; i++ {
		roi, err := f.catalog.Create(ctx, masterdata.KindROI, map[string]any{
			"instrument_id": "SVB_MIR_PL01_PHE03", "points_json": "[[0,0],[1,0],[1,1]]",
		})
		require.NoError(t, err)
		ids = append(ids, roi.Ref().ID)
	}
	token := f.admin(t)

	for i := 0; i < 10; i++ {
		rec := f.do(t, http.MethodDelete, "/api/rois/"+strconv.FormatInt(ids[i], 10), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	entries := f.audit.Entries()
	require.Len(t, entries, 10)
	for _, e := range entries {
		assert.Equal(t, "admin_delete", e.Action)
		assert.Equal(t, "alice", e.AdminUser)
		var meta map[string]any
		require.NoError(t, json.Unmarshal(e.Metadata, &meta))
		assert.Equal(t, 200.0, meta["status"])
		assert.Contains(t, meta, "duration_ms")
	}

	rec := f.do(t, http.MethodDelete, "/api/rois/"+strconv.FormatInt(ids[10], 10), token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", decode(t, rec)["error"])
	assert.Len(t, f.audit.Entries(), 10)

	// Reads and non-admin callers stay off the admin path.
	rec = f.do(t, http.MethodGet, "/api/rois/"+strconv.FormatInt(ids[10], 10), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	station := f.token(t, auth.User{Username: "svb_user", Role: auth.RoleStation, StationNormalizedName: "svartberget", StationAcronym: "SVB"})
	rec = f.do(t, http.MethodDelete, "/api/rois/"+strconv.FormatInt(ids[10], 10), station, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, f.audit.Entries(), 10)
}

func TestListInstrumentQueryFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	token := f.token(t, auth.User{Username: "viewer", Role: auth.RoleReadonly})

	names := func(path string) []string {
		t.Helper()
		rec := f.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var list []masterdata.Instrument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		out := []string{}
		for _, i := range list {
			out = append(out, i.NormalizedName)
		}
		return out
	}

	assert.Equal(t, []string{"SVB_MIR_PL01_PHE01", "SVB_MIR_PL01_PHE02", "SVB_MIR_PL01_PHE03"},
		names("/api/instruments?station=SVB&type=phenocam&status=active"))
	assert.Equal(t, []string{"SVB_FOR_BL01_NDVI01"}, names("/api/instruments?q=SOUTH"))
	assert.Len(t, names("/api/instruments?updated_since=2025-06-01"), 5)
	assert.Empty(t, names("/api/instruments?updated_since=2025-06-01T13:00:00Z"))

	for _, path := range []string{
		"/api/instruments?type=radar",
		"/api/instruments?status=Broken",
		"/api/instruments?updated_since=yesterday",
	} {
		rec := f.do(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
