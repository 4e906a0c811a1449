package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"agromix/internal/core"
)

const ownerKey = "agromix.owner"

var errNoSecret = errors.New("token verification is not configured")

// SignToken issues an HS256 token whose subject is the owner id.
func SignToken(secret []byte, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseOwner verifies token and returns its subject.
func ParseOwner(secret []byte, token string) (string, error) {
	if len(secret) == 0 {
		return "", errNoSecret
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	switch claims.Subject {
	case "":
		return "", errors.New("token has no subject")
	case core.AnonymousOwner:
		// Would share the unauthenticated local collection.
		return "", fmt.Errorf("token subject %q is reserved", claims.Subject)
	}
	return claims.Subject, nil
}

// owner resolves the caller from an optional bearer token. Requests without
// an Authorization header run as the anonymous owner.
func (h *handler) owner(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}
	ownerID, err := ParseOwner(h.secret, strings.TrimSpace(token))
	if err != nil {
		h.logger.Debug("rejected bearer token", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(ownerKey, ownerID)
	c.Next()
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}
