package handlers

import (
	"errors"
	"net/http"
	"strings"

	"careops/internal/auth"
	"careops/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Register creates an owner account and returns a session token
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}
	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         models.RoleOwner,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login verifies credentials and returns a session token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.handleError(c, http.StatusInternalServerError, "Failed to load account", err)
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := h.Issuer.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}
	c.JSON(status, authResponse{Token: token, User: user})
}

// GetCurrentUser returns the authenticated user
func (h *Handler) GetCurrentUser(c *gin.Context) {
	uid, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ?", uid).First(&user).Error; err != nil {
		h.storeError(c, "User", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
