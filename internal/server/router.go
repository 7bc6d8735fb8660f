// Package server exposes the matchmaking core over a local HTTP API
// consumed by the device UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/auth"
	"github.com/PopAlexandra2004/furryfriends/internal/chat"
	"github.com/PopAlexandra2004/furryfriends/internal/directory"
	"github.com/PopAlexandra2004/furryfriends/internal/interest"
	"github.com/PopAlexandra2004/furryfriends/internal/playdate"
	"github.com/PopAlexandra2004/furryfriends/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	usernameContextKey = "furryfriends_username"
	roleContextKey     = "furryfriends_role"
)

var (
	errMissingDirectory     = errors.New("directory service dependency required")
	errMissingChat          = errors.New("chat service dependency required")
	errMissingPlaydates     = errors.New("playdate service dependency required")
	errMissingInterests     = errors.New("interest service dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingSessionStore  = errors.New("session store dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates access tokens.
type SessionTokenManager interface {
	IssueSessionToken(username, role string) (string, int64, error)
	ValidateToken(token string) (string, string, error)
}

// RefreshSessionStore persists opaque refresh sessions.
type RefreshSessionStore interface {
	Create(ctx context.Context, username, role string) (string, error)
	Lookup(ctx context.Context, token string) (session.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Dependencies wires the router to the core services.
type Dependencies struct {
	Directory *directory.Service
	Chat      *chat.Service
	Playdates *playdate.Service
	Interests *interest.Service
	Tokens    SessionTokenManager
	Sessions  RefreshSessionStore
	Clock     func() time.Time
	Logger    *zap.Logger
}

// NewHTTPHandler builds the gin router for all core operations.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Directory == nil {
		return nil, errMissingDirectory
	}
	if deps.Chat == nil {
		return nil, errMissingChat
	}
	if deps.Playdates == nil {
		return nil, errMissingPlaydates
	}
	if deps.Interests == nil {
		return nil, errMissingInterests
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		directory: deps.Directory,
		chat:      deps.Chat,
		playdates: deps.Playdates,
		interests: deps.Interests,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		clock:     clock,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/refresh", handler.handleRefresh)
	router.POST("/auth/logout", handler.handleLogout)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	{
		protected.GET("/users/me", handler.handleCurrentUser)
		protected.POST("/users/role", handler.handleSelectRole)
		protected.POST("/users/owner-code", handler.handleOwnerCode)

		protected.POST("/pets", handler.handleAddPet)
		protected.DELETE("/pets/:name", handler.handleRemovePet)
		protected.GET("/pets/browse", handler.handleBrowsePets)

		protected.POST("/interests", handler.handleRaiseInterest)
		protected.GET("/interests", handler.handleListInterests)
		protected.POST("/interests/:id/accept", handler.handleAcceptInterest)
		protected.POST("/interests/:id/deny", handler.handleDenyInterest)

		protected.GET("/chats", handler.handleListThreads)
		protected.GET("/chats/:with/messages", handler.handleListMessages)
		protected.POST("/chats/:with/messages", handler.handleSendMessage)
		protected.POST("/chats/:with/read", handler.handleMarkRead)
		protected.GET("/messages/unread-count", handler.handleUnreadCount)

		protected.GET("/chats/:with/playdate", handler.handleGetPlaydate)
		protected.PUT("/chats/:with/playdate", handler.handleSubmitPlaydate)
		protected.POST("/chats/:with/playdate/accept", handler.handleAcceptPlaydate)
		protected.POST("/chats/:with/playdate/phone", handler.handleSubmitPhone)

		protected.GET("/reminders/active", handler.handleActiveReminder)
		protected.DELETE("/reminders/active", handler.handleClearReminder)
	}

	admin := protected.Group("/admin")
	admin.Use(handler.requireOwnerRole)
	{
		admin.GET("/users", handler.handleListUsers)
		admin.DELETE("/users/:username", handler.handleBanUser)
		admin.GET("/statistics/logins", handler.handleLoginStatistics)
	}

	return router, nil
}

type httpHandler struct {
	directory *directory.Service
	chat      *chat.Service
	playdates *playdate.Service
	interests *interest.Service
	tokens    SessionTokenManager
	sessions  RefreshSessionStore
	clock     func() time.Time
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest validates the bearer token and stashes the caller's
// identity on the request context.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	username, role, err := h.tokens.ValidateToken(token)
	if err != nil {
		logLevel := h.logger.Warn
		if errors.Is(err, auth.ErrExpiredToken) {
			logLevel = h.logger.Info
		}
		logLevel("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(usernameContextKey, username)
	c.Set(roleContextKey, role)
	c.Next()
}

// requireOwnerRole gates administrative routes. The role is re-read
// from the directory rather than trusted from the token, so a role
// granted or revoked after login takes effect immediately.
func (h *httpHandler) requireOwnerRole(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	user, err := h.directory.Get(c.Request.Context(), username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "owner_role_required"})
		return
	}
	if user.Role != directory.RoleOwner {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "owner_role_required"})
		return
	}
	c.Next()
}

// respondError maps service errors onto the API's failure statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "store_failure"
	switch {
	case errors.Is(err, directory.ErrInvalidUsername),
		errors.Is(err, directory.ErrInvalidPassword),
		errors.Is(err, directory.ErrInvalidRole),
		errors.Is(err, directory.ErrInvalidPet),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrSelfThread),
		errors.Is(err, playdate.ErrMissingDetail),
		errors.Is(err, playdate.ErrEmptyPhone),
		errors.Is(err, playdate.ErrInvalidStart),
		errors.Is(err, interest.ErrMissingDogName):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, directory.ErrPetNotFound),
		errors.Is(err, playdate.ErrNoProposal),
		errors.Is(err, interest.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, directory.ErrDuplicateUsername),
		errors.Is(err, directory.ErrRoleAlreadySet),
		errors.Is(err, playdate.ErrSelfAccept):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, directory.ErrWrongPassword),
		errors.Is(err, directory.ErrInvalidCode),
		errors.Is(err, session.ErrNotFound):
		status, code = http.StatusUnauthorized, "unauthorized"
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code, "detail": err.Error()})
}
