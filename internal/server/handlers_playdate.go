package server

import (
	"net/http"

	"github.com/PopAlexandra2004/furryfriends/internal/chat"
	"github.com/PopAlexandra2004/furryfriends/internal/playdate"
	"github.com/gin-gonic/gin"
)

type playdateDetailsPayload struct {
	Date     string `json:"date" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Location string `json:"location" binding:"required"`
	Duration string `json:"duration" binding:"required"`
}

type phonePayload struct {
	Phone string `json:"phone" binding:"required"`
}

func (h *httpHandler) handleGetPlaydate(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	threadID := chat.ThreadID(username, c.Param("with"))
	record, found, err := h.playdates.Record(c.Request.Context(), threadID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleSubmitPlaydate(c *gin.Context) {
	var request playdateDetailsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	username := c.GetString(usernameContextKey)
	threadID := chat.ThreadID(username, c.Param("with"))
	record, err := h.playdates.SubmitDetails(c.Request.Context(), threadID, username, playdate.Details{
		Date:     request.Date,
		Time:     request.Time,
		Location: request.Location,
		Duration: request.Duration,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleAcceptPlaydate(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	threadID := chat.ThreadID(username, c.Param("with"))
	record, err := h.playdates.Accept(c.Request.Context(), threadID, username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleSubmitPhone(c *gin.Context) {
	var request phonePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	username := c.GetString(usernameContextKey)
	threadID := chat.ThreadID(username, c.Param("with"))
	record, complete, err := h.playdates.SubmitPhone(c.Request.Context(), threadID, username, request.Phone)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record, "exchange_complete": complete})
}

func (h *httpHandler) handleActiveReminder(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	record, found, err := h.playdates.ActiveReminder(c.Request.Context(), username, h.clock())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleClearReminder(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	if err := h.playdates.ClearReminder(c.Request.Context(), username); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
