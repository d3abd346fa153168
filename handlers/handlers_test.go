package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"workscope/auth"
	"workscope/cache"
	"workscope/db"
	"workscope/fixtures"
	"workscope/middleware"
	"workscope/models"
	"workscope/reports"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// flakyStore fails report queries while failing is set, and writes to failSet.
type flakyStore struct {
	db.Store
	failing bool
	failSet string
}

func (s *flakyStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if collection == s.failSet {
		return errors.New("write rejected")
	}
	return s.Store.Set(ctx, collection, id, data)
}

func (s *flakyStore) Query(ctx context.Context, collection string, preds []db.Predicate, limit int) ([]db.Record, error) {
	if s.failing && collection == models.CollectionReports {
		return nil, errors.New("deadline exceeded talking to backend")
	}
	return s.Store.Query(ctx, collection, preds, limit)
}

type testEnv struct {
	store    *flakyStore
	service  *reports.Service
	sessions *cache.Registry
	jwt      *auth.JWTManager
	auth     *AuthHandler
	reports  *ReportsHandler
	admin    *AdminHandler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	hasher := auth.NewHasher(bcrypt.MinCost)

	f, err := fixtures.Load("../fixtures/testdata/demo.yaml")
	require.NoError(t, err)
	mem := db.NewMemoryDB()
	_, err = f.Apply(context.Background(), mem, hasher)
	require.NoError(t, err)

	store := &flakyStore{Store: mem}
	service := reports.NewService(store, reports.Options{Now: func() time.Time { return now }})
	sessions := cache.NewRegistry()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)

	return &testEnv{
		store:    store,
		service:  service,
		sessions: sessions,
		jwt:      jwtManager,
		auth:     NewAuthHandler(store, service.Normalizer(), jwtManager, hasher, sessions),
		reports:  NewReportsHandler(service, sessions, 10),
		admin:    NewAdminHandler(store, service, hasher, sessions),
	}
}

func (e *testEnv) user(t *testing.T, id string) models.User {
	t.Helper()
	rec, err := e.store.GetByID(context.Background(), models.CollectionUsers, id)
	require.NoError(t, err)
	return e.service.Normalizer().User(*rec)
}

func (e *testEnv) do(t *testing.T, h http.HandlerFunc, as string, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), e.user(t, as)))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pageIDs(resp ListResponse) []string {
	ids := make([]string, len(resp.Page.Items))
	for i, r := range resp.Page.Items {
		ids[i] = r.ID
	}
	return ids
}

func TestLogin(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.auth.Login, "", http.MethodPost, "/api/login", LoginRequest{Username: "jefa", Password: "jefapass1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, "jefa", resp.User.ID)
	assert.Equal(t, models.AdminLevelTop, resp.User.AdminLevel)
	assert.Equal(t, 1, env.sessions.Len(), "admin login opens a session")

	claims, err := env.jwt.ValidateToken(resp.Token, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "jefa", claims.UserID)

	rec = env.do(t, env.auth.RefreshToken, "", http.MethodPost, "/api/refresh", RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, env.auth.RefreshToken, "", http.MethodPost, "/api/refresh", RefreshTokenRequest{RefreshToken: resp.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access token is not a refresh token")

	rec = env.do(t, env.auth.Logout, "jefa", http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.sessions.Len())
}

func TestLogin_Rejects(t *testing.T) {
	env := newEnv(t)

	cases := []struct {
		name   string
		body   LoginRequest
		status int
	}{
		{"wrong password", LoginRequest{Username: "jefa", Password: "nope12345"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "ghost", Password: "jefapass1"}, http.StatusUnauthorized},
		{"user without password", LoginRequest{Username: "ana", Password: "anything1"}, http.StatusUnauthorized},
		{"missing password", LoginRequest{Username: "jefa"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, env.auth.Login, "", http.MethodPost, "/api/login", tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Zero(t, env.sessions.Len())
}

func TestList_ScopedToHierarchy(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.reports.List, "jefa", http.MethodGet, "/api/reports?view=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ListResponse](t, rec)
	assert.Equal(t, []string{"r1", "r2"}, pageIDs(resp), "bea's report is outside jefa's hierarchy")
	assert.False(t, resp.Partial)

	rec = env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports?page_size=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ListResponse](t, rec)
	assert.Equal(t, []string{"r4"}, pageIDs(resp))
	assert.Equal(t, 2, resp.Page.TotalPages)

	rec = env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports?priority=alta", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r1"}, pageIDs(decode[ListResponse](t, rec)))
}

func TestList_BadQuery(t *testing.T) {
	env := newEnv(t)

	for _, q := range []string{"view=archived", "priority=extreme", "date=tomorrow", "page_size=0", "page=x"} {
		rec := env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestList_FetchFailureIsRetryable(t *testing.T) {
	env := newEnv(t)
	env.store.failing = true

	rec := env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, body["retryable"])

	env.store.failing = false
	rec = env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsAndWorkers(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.reports.Stats, "root", http.MethodGet, "/api/reports/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Basic struct {
			Total          int    `json:"total"`
			Completed      int    `json:"completed"`
			CompletionRate string `json:"completion_rate"`
		} `json:"basic"`
		Workers []json.RawMessage `json:"workers"`
	}](t, rec)
	assert.Equal(t, 4, body.Basic.Total)
	assert.Equal(t, 1, body.Basic.Completed)
	assert.Equal(t, "25.0", body.Basic.CompletionRate)
	assert.Len(t, body.Workers, 3)

	rec = env.do(t, env.reports.Workers, "coord", http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, workers.Count, "coord sees its own worker and its creator's")
}

func TestExport(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.reports.Export, "jefa", http.MethodGet, "/api/reports/export?view=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reports_completed_2024-05-10_12-00-00.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "r3", rows[1][0])
	assert.Equal(t, "Ana Torres", rows[1][3])
	assert.Equal(t, "Acme Industrial", rows[1][5])
	assert.Equal(t, "2024-05-06T14:30:00Z", rows[1][10])
}

func TestCreateUser_LevelRules(t *testing.T) {
	env := newEnv(t)

	cases := []struct {
		name   string
		as     string
		req    CreateUserRequest
		status int
	}{
		{"top creates peer", "jefa", CreateUserRequest{Username: "peer2", Password: "peerpass1", Name: "Peer", Role: models.RoleAdmin, AdminLevel: 2}, http.StatusCreated},
		{"top cannot create global", "jefa", CreateUserRequest{Username: "boss", Password: "bosspass1", Name: "Boss", Role: models.RoleAdmin, AdminLevel: 1}, http.StatusForbidden},
		{"peer cannot create admins", "coord", CreateUserRequest{Username: "peer3", Password: "peerpass1", Name: "Peer", Role: models.RoleAdmin, AdminLevel: 2}, http.StatusForbidden},
		{"peer creates worker", "coord", CreateUserRequest{Username: "eva", Password: "evapass12", Name: "Eva", Role: models.RoleWorker}, http.StatusCreated},
		{"global creates top", "root", CreateUserRequest{Username: "top2", Password: "toppass12", Name: "Top", Role: models.RoleAdmin, AdminLevel: 3}, http.StatusCreated},
		{"duplicate username", "root", CreateUserRequest{Username: "ana", Password: "anapass12", Name: "Ana", Role: models.RoleWorker}, http.StatusConflict},
		{"weak password", "root", CreateUserRequest{Username: "weak", Password: "password", Name: "Weak", Role: models.RoleWorker}, http.StatusBadRequest},
		{"unknown role", "root", CreateUserRequest{Username: "odd", Password: "oddpass12", Name: "Odd", Role: "owner"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, env.admin.CreateUser, tc.as, http.MethodPost, "/api/admin/users", tc.req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateUser_FailedWriteLeavesNoAccount(t *testing.T) {
	env := newEnv(t)
	mem := env.store.Store.(*db.MemoryDB)
	req := CreateUserRequest{Username: "eva", Password: "evapass12", Name: "Eva", Role: models.RoleWorker}

	for _, collection := range []string{models.CollectionPasswords, models.CollectionUsers} {
		env.store.failSet = collection
		rec := env.do(t, env.admin.CreateUser, "root", http.MethodPost, "/api/admin/users", req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, collection)
		assert.Equal(t, 6, mem.Len(models.CollectionUsers), collection)
		assert.Equal(t, 3, mem.Len(models.CollectionPasswords), collection)
	}

	env.store.failSet = ""
	rec := env.do(t, env.admin.CreateUser, "root", http.MethodPost, "/api/admin/users", req)
	assert.Equal(t, http.StatusCreated, rec.Code, "the username was never taken")
}

func TestCreateUser_ExtendsVisibility(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.reports.Workers, "coord", http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, env.admin.CreateUser, "coord", http.MethodPost, "/api/admin/users",
		CreateUserRequest{Username: "eva", Password: "evapass12", Name: "Eva", Role: models.RoleWorker})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.User](t, rec)
	assert.Equal(t, "coord", created.CreatorID)

	rec = env.do(t, env.reports.Workers, "coord", http.MethodGet, "/api/workers", nil)
	workers := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	assert.Equal(t, 3, workers.Count)
}

func TestCreateAndDeleteReport(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.admin.CreateReport, "jefa", http.MethodPost, "/api/admin/reports",
		CreateReportRequest{WorkerID: "bea", CompanyID: "acme", WorkType: "Lighting", Priority: "alta"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "bea is outside jefa's hierarchy")

	rec = env.do(t, env.admin.CreateReport, "jefa", http.MethodPost, "/api/admin/reports",
		CreateReportRequest{WorkerID: "ana", CompanyID: "acme", WorkType: "Router", Priority: "someday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.admin.CreateReport, "jefa", http.MethodPost, "/api/admin/reports",
		CreateReportRequest{WorkerID: "ana", CompanyID: "acme", WorkType: "Router", Priority: "alta"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Report](t, rec)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "Sistemas", created.Department)
	assert.True(t, created.CreatedAt.Equal(now))

	rec = env.do(t, env.reports.List, "jefa", http.MethodGet, "/api/reports", nil)
	assert.Equal(t, []string{created.ID, "r1", "r2"}, pageIDs(decode[ListResponse](t, rec)))

	rec = env.do(t, env.admin.DeleteReport, "jefa", http.MethodDelete, "/api/admin/reports", DeleteReportRequest{ReportID: "r4"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, env.admin.DeleteReport, "jefa", http.MethodDelete, "/api/admin/reports", DeleteReportRequest{ReportID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, env.admin.DeleteReport, "jefa", http.MethodDelete, "/api/admin/reports", DeleteReportRequest{ReportID: "r1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, env.reports.List, "jefa", http.MethodGet, "/api/reports", nil)
	assert.Equal(t, []string{created.ID, "r2"}, pageIDs(decode[ListResponse](t, rec)))
}

func TestRefresh(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, env.reports.List, "root", http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.sessions.Get("root").IsInitialized())

	rec = env.do(t, env.reports.Refresh, "root", http.MethodPost, "/api/reports/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.sessions.Get("root").IsInitialized())

	rec = env.do(t, env.reports.Refresh, "root", http.MethodGet, "/api/reports/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
