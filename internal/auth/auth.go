package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/gin-gonic/gin"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	ContextUserID = "auth.userID"
	ContextRole   = "auth.role"
)

// Claims is the token payload the upstream auth layer issues. The core only
// trusts sub and role; everything else is its own job to verify.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	Expiry  int64  `json:"exp,omitempty"`
}

// SignToken mints an HS256 compact JWS for the given identity. Used by tests
// and local tooling; production tokens come from the auth service.
func SignToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", err
	}
	claims := Claims{
		Subject: userID,
		Role:    role,
		Expiry:  time.Now().Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return obj.CompactSerialize()
}

// Middleware verifies the bearer token and stores the caller's identity in
// the gin context.
func Middleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		obj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}
		payload, err := obj.Verify(secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		var claims Claims
		if err := json.Unmarshal(payload, &claims); err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}
		if claims.Expiry != 0 && time.Now().Unix() > claims.Expiry {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "token expired"})
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin guards admin-only routes. Runs after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "admin role required"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(ContextUserID) }
