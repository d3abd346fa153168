package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workscope/auth"
	"workscope/db"
	"workscope/models"
	"workscope/normalize"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := GetUserFromContext(r.Context())
	w.Header().Set("X-User", user.ID)
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	store := db.NewMemoryDB()
	admin := models.User{ID: "a1", Username: "jefa", Role: models.RoleAdmin, AdminLevel: 2, CreatorID: "root"}
	require.NoError(t, store.Set(context.Background(), models.CollectionUsers, admin.ID, admin.Fields()))

	jwtManager := auth.NewJWTManager("secret", time.Minute, time.Hour)
	access, err := jwtManager.GenerateToken(admin)
	require.NoError(t, err)
	refresh, err := jwtManager.GenerateRefreshToken(admin)
	require.NoError(t, err)
	ghost, err := jwtManager.GenerateToken(models.User{ID: "ghost", Role: models.RoleAdmin})
	require.NoError(t, err)

	h := AuthMiddleware(jwtManager, store, normalize.New(nil))(http.HandlerFunc(okHandler))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + access, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"deleted user", "Bearer " + ghost, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "a1", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(http.HandlerFunc(okHandler))

	serve := func(ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(WithUser(context.Background(), models.User{ID: "w", Role: models.RoleWorker})))
	assert.Equal(t, http.StatusOK, serve(WithUser(context.Background(), models.User{ID: "a", Role: models.RoleAdmin})))
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/api/reports", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "forwarded client has its own bucket")

	assert.Equal(t, 0, rl.Sweep(time.Hour))
	assert.Equal(t, 2, rl.Sweep(-time.Second))
}
