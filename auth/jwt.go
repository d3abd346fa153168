package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"workscope/models"
)

const issuer = "workscope-api"

// Token kinds. A refresh token cannot be used as an access token and vice versa.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims represents the JWT claims
type Claims struct {
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Role       models.UserRole `json:"role"`
	AdminLevel int             `json:"admin_level,omitempty"`
	Kind       string          `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token generation and validation
type JWTManager struct {
	secretKey              []byte
	tokenExpiration        time.Duration
	refreshTokenExpiration time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenExpiration, refreshTokenExpiration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:              []byte(secretKey),
		tokenExpiration:        tokenExpiration,
		refreshTokenExpiration: refreshTokenExpiration,
	}
}

// GenerateToken generates an access token for a user
func (m *JWTManager) GenerateToken(user models.User) (string, error) {
	return m.sign(user, KindAccess, m.tokenExpiration)
}

// GenerateRefreshToken generates a refresh token with longer expiration
func (m *JWTManager) GenerateRefreshToken(user models.User) (string, error) {
	return m.sign(user, KindRefresh, m.refreshTokenExpiration)
}

func (m *JWTManager) sign(user models.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		AdminLevel: user.AdminLevel,
		Kind:       kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return signedToken, nil
}

// ValidateToken validates a token of the given kind and returns its claims
func (m *JWTManager) ValidateToken(tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("expected %s token, got %q", kind, claims.Kind)
	}

	return claims, nil
}

// ExtractToken extracts the token from the Authorization header
// Expected format: "Bearer <token>"
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is empty")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}

	return strings.TrimSpace(token), nil
}
