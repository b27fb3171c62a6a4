package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pushnami/api/logger"
	"pushnami/api/middleware"
	"pushnami/api/models"
	"pushnami/api/services"
)

type AuthHandlers struct {
	Auth         *services.Auth
	secureCookie bool
	timeout      time.Duration
	log          *logger.Logger
}

func NewAuthHandlers(auth *services.Auth, secureCookie bool, timeout time.Duration, log *logger.Logger) *AuthHandlers {
	return &AuthHandlers{Auth: auth, secureCookie: secureCookie, timeout: timeout, log: log.With("handler", "auth")}
}

// Login checks admin credentials and issues the token as an HttpOnly cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	token, admin, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err, "Failed to log in")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.AuthCookieName,
		token,
		int(h.Auth.TTL()/time.Second),
		"/",
		"",
		h.secureCookie,
		true,
	)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"email":   admin.Email,
		"token":   token,
	})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
