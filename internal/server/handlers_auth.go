package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type loginRequestPayload struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponsePayload struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Role         string `json:"role,omitempty"`
}

type refreshRequestPayload struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Password != request.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password_mismatch"})
		return
	}

	user, err := h.directory.Register(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"username": user.Username})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.directory.Login(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	accessToken, expiresIn, err := h.tokens.IssueSessionToken(user.Username, string(user.Role))
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	refreshToken, err := h.sessions.Create(c.Request.Context(), user.Username, string(user.Role))
	if err != nil {
		h.logger.Error("failed to create refresh session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_create_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken:  accessToken,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Role:         string(user.Role),
	})
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	stored, err := h.sessions.Lookup(c.Request.Context(), request.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	accessToken, expiresIn, err := h.tokens.IssueSessionToken(stored.Username, stored.Role)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        stored.Role,
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), request.RefreshToken); err != nil {
		h.logger.Warn("failed to revoke refresh session", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}
