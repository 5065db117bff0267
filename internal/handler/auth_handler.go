package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdos/internal/model"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *model.User, error)
}

type AuthHandler struct {
	auth         Authenticator
	cookieName   string
	cookieTTL    time.Duration
	secureCookie bool
	logger       *zap.Logger
}

func NewAuthHandler(auth Authenticator, cookieName string, ttl time.Duration, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		cookieName:   cookieName,
		cookieTTL:    ttl,
		secureCookie: secure,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	log := reqLogger(c, h.logger)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	token, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Info("Login rejected", zap.String("email", req.Email), zap.Error(err))
		writeError(c, log, "login", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.cookieTTL.Seconds()), "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
