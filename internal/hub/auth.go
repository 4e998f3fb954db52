package hub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "matrixhub"

// TokenClaims represents the claims in an API token
type TokenClaims struct {
	jwt.RegisteredClaims
	HubID string `json:"hub_id"`
}

// TokenService issues and validates HS256 bearer tokens for the local API
type TokenService struct {
	secretKey []byte
	hubID     string
}

// NewTokenService creates a token service bound to one hub
func NewTokenService(secret, hubID string) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		hubID:     hubID,
	}
}

// GenerateToken creates a token for subject. A zero ttl issues a token that never expires.
func (s *TokenService) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		HubID: s.hubID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates a token and returns its claims
func (s *TokenService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.HubID != s.hubID {
		return nil, fmt.Errorf("token was issued for hub %q", claims.HubID)
	}

	return claims, nil
}

type claimsKey struct{}

// RequireAuth rejects requests without a valid bearer token
func (s *TokenService) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, APIResponse{Success: false, Error: "Authorization header required"})
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, APIResponse{Success: false, Error: "Authorization header must start with 'Bearer '"})
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, APIResponse{Success: false, Error: "Invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims RequireAuth attached to the request
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*TokenClaims)
	return claims, ok
}
