package server

import (
	"net/http"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/directory"
	"github.com/gin-gonic/gin"
)

// userPayload is the account view returned by the API; credential
// hashes never leave the directory.
type userPayload struct {
	Username string          `json:"username"`
	Role     string          `json:"role,omitempty"`
	Pets     []directory.Pet `json:"pets"`
	Logins   []time.Time     `json:"logins,omitempty"`
}

func toUserPayload(user directory.User) userPayload {
	pets := user.Pets
	if pets == nil {
		pets = []directory.Pet{}
	}
	return userPayload{
		Username: user.Username,
		Role:     string(user.Role),
		Pets:     pets,
		Logins:   user.Logins,
	}
}

type selectRolePayload struct {
	Role string `json:"role" binding:"required"`
}

type ownerCodePayload struct {
	Code string `json:"code" binding:"required"`
}

type addPetPayload struct {
	Name        string   `json:"name" binding:"required"`
	Breed       string   `json:"breed" binding:"required"`
	Age         int      `json:"age" binding:"required"`
	Description string   `json:"description"`
	Pictures    []string `json:"pictures"`
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	user, err := h.directory.Get(c.Request.Context(), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserPayload(user))
}

func (h *httpHandler) handleSelectRole(c *gin.Context) {
	var request selectRolePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	role, err := directory.ParseRole(request.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	username := c.GetString(usernameContextKey)
	if err := h.directory.SelectRole(c.Request.Context(), username, role); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": string(role)})
}

func (h *httpHandler) handleOwnerCode(c *gin.Context) {
	var request ownerCodePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	username := c.GetString(usernameContextKey)
	if err := h.directory.VerifyOwnerCode(c.Request.Context(), username, request.Code); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": string(directory.RoleOwner)})
}

func (h *httpHandler) handleAddPet(c *gin.Context) {
	var request addPetPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	username := c.GetString(usernameContextKey)
	pet := directory.Pet{
		Name:        request.Name,
		Breed:       request.Breed,
		Age:         request.Age,
		Description: request.Description,
		Pictures:    request.Pictures,
	}
	if err := h.directory.AddPet(c.Request.Context(), username, pet); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pet)
}

func (h *httpHandler) handleRemovePet(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	if err := h.directory.RemovePet(c.Request.Context(), username, c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleBrowsePets(c *gin.Context) {
	username := c.GetString(usernameContextKey)
	browsable, err := h.directory.BrowsePets(c.Request.Context(), username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pets": browsable})
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	users, err := h.directory.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload := make([]userPayload, 0, len(users))
	for _, user := range users {
		payload = append(payload, toUserPayload(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": payload})
}

func (h *httpHandler) handleBanUser(c *gin.Context) {
	if err := h.directory.BanUser(c.Request.Context(), c.Param("username")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLoginStatistics(c *gin.Context) {
	stats, err := h.directory.LoginStatistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": stats})
}
