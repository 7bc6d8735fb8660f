package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendMessagePayload struct {
	Message string `json:"message" binding:"required"`
	DogName string `json:"dog_name"`
}

type raiseInterestPayload struct {
	Owner   string `json:"owner" binding:"required"`
	DogName string `json:"dog_name" binding:"required"`
}

func (h *httpHandler) handleListThreads(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	previews, err := h.chat.ThreadsFor(c.Request.Context(), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": previews})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	messages, err := h.chat.Messages(c.Request.Context(), username, c.Param("with"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var request sendMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	username := c.GetString(usernameContextKey)
	message, err := h.chat.Send(c.Request.Context(), username, c.Param("with"), request.Message, request.DogName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	if err := h.chat.MarkRead(c.Request.Context(), username, c.Param("with")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	unread, err := h.chat.CountUnread(c.Request.Context(), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": unread})
}

func (h *httpHandler) handleRaiseInterest(c *gin.Context) {
	var request raiseInterestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	// The pet's owner must exist before interest is queued for them.
	if _, err := h.directory.Get(c.Request.Context(), request.Owner); err != nil {
		h.respondError(c, err)
		return
	}

	username := c.GetString(usernameContextKey)
	notification, err := h.interests.Raise(c.Request.Context(), request.Owner, username, request.DogName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notification)
}

func (h *httpHandler) handleListInterests(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	pending, err := h.interests.ListFor(c.Request.Context(), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": pending})
}

func (h *httpHandler) handleAcceptInterest(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	message, err := h.interests.Accept(c.Request.Context(), c.Param("id"), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *httpHandler) handleDenyInterest(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	if err := h.interests.Deny(c.Request.Context(), c.Param("id"), username); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
