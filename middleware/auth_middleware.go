package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pushnami/api/logger"
	"pushnami/api/utils"
)

const (
	AuthCookieName = "jwt_token"
	ctxAdminID     = "admin_id"
	ctxAdminEmail  = "admin_email"
)

// AuthRequired guards admin routes. A request passes with a matching
// X-API-KEY header or a valid token in the jwt_token cookie or Authorization
// header. With neither credential configured the guard is a no-op.
func AuthRequired(jwtSecret, apiKey string, log *logger.Logger) gin.HandlerFunc {
	if jwtSecret == "" && apiKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		if apiKey != "" {
			if got := c.GetHeader("X-API-KEY"); got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) == 1 {
				c.Next()
				return
			}
		}
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid API key"})
			return
		}

		tokenString, err := c.Cookie(AuthCookieName)
		if err != nil || tokenString == "" {
			header := c.GetHeader("Authorization")
			if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
				tokenString = header[7:]
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}

		claims, err := utils.ValidateJWT(tokenString, secret)
		if err != nil {
			log.Warn("Rejected admin token", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}
		c.Set(ctxAdminID, claims.AdminID)
		c.Set(ctxAdminEmail, claims.Email)
		c.Next()
	}
}
