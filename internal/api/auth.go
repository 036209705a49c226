package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const clientContextKey = "ClientID"

// ClientClaims are the JWT claims issued to API clients.
type ClientClaims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed client token.
func GenerateToken(clientID, secret string, expiresAt time.Time) (string, error) {
	claims := ClientClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ClientClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*ClientClaims); ok && token.Valid {
		return claims.ClientID, nil
	}
	return "", errors.New("invalid token claims")
}

// AuthMiddleware enforces JWT bearer auth for protected routes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "MISSING_TOKEN",
				"error": "missing Authorization header",
			})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "INVALID_AUTH_HEADER",
				"error": "invalid Authorization header",
			})
			return
		}

		clientID, err := parseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "INVALID_TOKEN",
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(clientContextKey, clientID)
		c.Next()
	}
}

// CurrentClientID returns the authenticated client id from context.
func CurrentClientID(c *gin.Context) string {
	if v, ok := c.Get(clientContextKey); ok {
		if id, okCast := v.(string); okCast {
			return id
		}
	}
	return ""
}

// issueToken exchanges the shared API key for a short-lived JWT.
func (s *Server) issueToken(c *gin.Context) {
	if s.APIKey == "" || c.GetHeader("X-API-Key") != s.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":  "INVALID_API_KEY",
			"error": "invalid api key",
		})
		return
	}

	var req struct {
		ClientID string `json:"client_id"`
	}
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.ClientID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "MISSING_CLIENT_ID",
			"error": "client_id is required",
		})
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	token, err := GenerateToken(req.ClientID, s.JWTSecret, expiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": "failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"client_id":  req.ClientID,
	})
}
