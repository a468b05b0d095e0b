package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/config"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	jwtConfig   *config.JWTConfig
}

func NewAuthHandler(authService *services.AuthService, jwtCfg *config.JWTConfig) *AuthHandler {
	return &AuthHandler{authService: authService, jwtConfig: jwtCfg}
}

// Signup registers a new account
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.authService.Signup(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, user)
}

// Login verifies credentials and sets the session cookie
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(&req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setSessionCookie(c, result.Token, h.jwtConfig.ExpireHour*3600)
	response.Success(c, result)
}

// Logout clears the session cookie
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	response.Success(c, gin.H{"message": "logged out"})
}

// Me returns the current user with engagement history
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.jwtConfig.CookieName, token, maxAge, "/", "", h.jwtConfig.CookieSecure, true)
}
