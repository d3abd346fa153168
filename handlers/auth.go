package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"workscope/auth"
	"workscope/cache"
	"workscope/db"
	"workscope/logger"
	"workscope/middleware"
	"workscope/models"
	"workscope/normalize"
)

type AuthHandler struct {
	store      db.Store
	norm       *normalize.Normalizer
	jwtManager *auth.JWTManager
	hasher     *auth.Hasher
	sessions   *cache.Registry
	log        *logrus.Entry
}

func NewAuthHandler(store db.Store, norm *normalize.Normalizer, jwtManager *auth.JWTManager, hasher *auth.Hasher, sessions *cache.Registry) *AuthHandler {
	return &AuthHandler{
		store:      store,
		norm:       norm,
		jwtManager: jwtManager,
		hasher:     hasher,
		sessions:   sessions,
		log:        logger.WithModule("handlers.auth"),
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

var errBadCredentials = errors.New("bad credentials")

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.authenticate(r, req)
	if err != nil {
		if errors.Is(err, errBadCredentials) {
			writeError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		h.log.WithError(err).Error("login lookup failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		h.log.WithError(err).WithField("user", user.Username).Error("failed to generate token")
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.jwtManager.GenerateRefreshToken(user)
	if err != nil {
		h.log.WithError(err).WithField("user", user.Username).Error("failed to generate refresh token")
		writeError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	// A new login starts from an empty report cache.
	if user.IsAdmin() {
		h.sessions.Open(user.ID)
	}

	h.log.WithFields(logrus.Fields{
		"user":        user.Username,
		"role":        user.Role,
		"admin_level": user.AdminLevel,
	}).Info("user logged in")

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (h *AuthHandler) authenticate(r *http.Request, req LoginRequest) (models.User, error) {
	recs, err := h.store.Query(r.Context(), models.CollectionUsers,
		[]db.Predicate{db.Eq(models.FieldUsername, req.Username)}, 1)
	if err != nil {
		return models.User{}, err
	}
	if len(recs) == 0 {
		h.log.WithField("user", req.Username).Info("login failed: user not found")
		return models.User{}, errBadCredentials
	}
	user := h.norm.User(recs[0])

	hash, err := db.GetPasswordHash(r.Context(), h.store, user.ID)
	if err != nil {
		h.log.WithField("user", req.Username).Info("login failed: password hash not found")
		return models.User{}, errBadCredentials
	}
	if err := h.hasher.Check(req.Password, hash); err != nil {
		h.log.WithField("user", req.Username).Info("login failed: invalid password")
		return models.User{}, errBadCredentials
	}
	return user, nil
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RefreshTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		writeError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	rec, err := h.store.GetByID(r.Context(), models.CollectionUsers, claims.UserID)
	if err != nil {
		writeError(w, "User not found", http.StatusUnauthorized)
		return
	}
	user := h.norm.User(*rec)

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		h.log.WithError(err).WithField("user", user.Username).Error("failed to generate token")
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, RefreshTokenResponse{Token: token})
}

// Logout discards the caller's session cache
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	h.sessions.Close(user.ID)
	h.log.WithField("user", user.Username).Info("user logged out")

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out",
	})
}
