package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"compforge/config"
	"compforge/database"
	"compforge/models"
	"compforge/services"
	"compforge/utils"
)

type AuthHandler struct {
	cfg   *config.Config
	cache *services.Cache
}

func NewAuthHandler(cfg *config.Config, cache *services.Cache) *AuthHandler {
	return &AuthHandler{cfg: cfg, cache: cache}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	var count int64
	database.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "User already exists with this email"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}

	now := time.Now()
	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "user",
		IsActive:     true,
		Preferences:  datatypes.JSON(`{}`),
		LastLoginAt:  &now,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}

	h.cache.SetUser(c.Request.Context(), &user)
	h.respondWithTokens(c, http.StatusCreated, user, "User registered successfully")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	// Dummy hash keeps response time flat when the email is unknown.
	dummyHash := []byte("$2a$10$0000000000000000000000uAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	var user models.User
	userFound := database.DB.Where("email = ?", req.Email).First(&user).Error == nil

	if !userFound || !user.IsActive {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	database.DB.Save(&user)

	h.cache.SetUser(c.Request.Context(), &user)
	h.respondWithTokens(c, http.StatusOK, user, "Login successful")
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	tokenHash := utils.HashToken(req.RefreshToken)

	var rt models.RefreshToken
	if err := database.DB.Where("token_hash = ? AND expires_at > ?", tokenHash, time.Now()).First(&rt).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid refresh token"})
		return
	}

	// Refresh tokens are single use.
	database.DB.Delete(&rt)

	var user models.User
	if err := database.DB.First(&user, "id = ?", rt.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	h.respondWithTokens(c, http.StatusOK, user, "Token refreshed")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, _ := c.Get("user_id")
	database.DB.Where("user_id = ?", userID).Delete(&models.RefreshToken{})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := c.Get("user_id")
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"user": user}})
}

type updateProfileRequest struct {
	Name        string         `json:"name" binding:"omitempty,max=100"`
	Preferences datatypes.JSON `json:"preferences"`
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	userID, _ := c.Get("user_id")
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Preferences != nil {
		user.Preferences = req.Preferences
	}
	database.DB.Save(&user)
	h.cache.SetUser(c.Request.Context(), &user)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated", "data": gin.H{"user": user}})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	userID, _ := c.Get("user_id")
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Current password is incorrect"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to change password"})
		return
	}

	user.PasswordHash = string(hash)
	database.DB.Save(&user)

	// Old refresh tokens stop working once the password changes.
	database.DB.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, user models.User, message string) {
	accessToken, err := utils.GenerateAccessToken(h.cfg.JWTSecret, user.ID, user.Email, h.cfg.JWTExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate access token"})
		return
	}

	refreshToken, refreshHash, err := utils.GenerateRefreshToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate refresh token"})
		return
	}

	rt := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: time.Now().Add(h.cfg.JWTRefreshExpiry),
	}
	database.DB.Create(&rt)

	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"user": gin.H{
				"id":          user.ID,
				"name":        user.Name,
				"email":       user.Email,
				"role":        user.Role,
				"preferences": user.Preferences,
				"created_at":  user.CreatedAt,
			},
			"tokens": gin.H{
				"access_token":  accessToken,
				"refresh_token": refreshToken,
			},
		},
	})
}
