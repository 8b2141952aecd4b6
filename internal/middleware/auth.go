package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/openprep/exam-gateway/internal/response"
	"github.com/openprep/exam-gateway/internal/upstream"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyBearer is the Gin context key for the raw bearer token,
	// retained so it can be forwarded verbatim to the content backend.
	ContextKeyBearer = "bearer"
)

// Claims extends JWT standard claims with the fields the gateway needs.
// Token issuance and refresh live on the auth service; the gateway only
// verifies and forwards.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// RequireAuth validates a bearer JWT from the Authorization header (or the
// ?token= query for WebSocket upgrades) and stores the claims plus the raw
// token in the request context.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := parseClaims(tokenStr, secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyBearer, tokenStr)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// TokenSource returns the caller's bearer token as an upstream.TokenSource,
// the capability object handed to the session and scoring layers.
func TokenSource(c *gin.Context) upstream.TokenSource {
	return upstream.StaticToken(c.GetString(ContextKeyBearer))
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	// Fallback for WebSocket upgrades, which cannot send headers.
	return c.Query("token")
}

func parseClaims(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
