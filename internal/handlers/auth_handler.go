package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

type RegisterUserRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone" binding:"required"`
}

// CreateUserRequest is the admin variant of registration, which may pick
// any role.
type CreateUserRequest struct {
	RegisterUserRequest
	Role string `json:"role" binding:"required,oneof=patient doctor staff admin"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterUser signs up a patient. Other roles are created by an admin.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}
	h.createUser(c, req, models.RolePatient)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}
	h.createUser(c, req.RegisterUserRequest, req.Role)
}

func (h *Handler) createUser(c *gin.Context, req RegisterUserRequest, role string) {
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		_ = c.Error(err)
		utils.SendError(c, http.StatusInternalServerError, utils.CodeInternal, "Failed to hash password")
		return
	}

	user := models.User{
		FullName: req.FullName,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: hashedPassword,
		Role:     role,
		Phone:    req.Phone,
	}
	if err := h.Stores.Users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.SendError(c, http.StatusConflict, utils.CodeDuplicateEmail, "An account with this email already exists")
			return
		}
		h.storeError(c, err, "user")
		return
	}

	h.Logger.Info().Str("userId", user.ID.Hex()).Str("role", role).Msg("user registered")
	utils.SendSuccess(c, http.StatusCreated, user, "Account created")
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request")
		return
	}

	user, err := h.Stores.Users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendError(c, http.StatusUnauthorized, utils.CodeBadCredentials, "Invalid credentials")
			return
		}
		h.storeError(c, err, "user")
		return
	}
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		utils.SendError(c, http.StatusUnauthorized, utils.CodeBadCredentials, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		_ = c.Error(err)
		utils.SendError(c, http.StatusInternalServerError, utils.CodeInternal, "Could not generate token")
		return
	}
	utils.SendSuccess(c, http.StatusOK, loginResponse{Token: token, User: user}, "")
}

// GetCurrentUser retrieves the profile of the currently authenticated user.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	user, err := h.Stores.Users.Get(c.Request.Context(), userID)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	utils.SendSuccess(c, http.StatusOK, user, "")
}

// UpdateCurrentUser lets a user change their own display name.
func (h *Handler) UpdateCurrentUser(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		FullName string `json:"fullName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FullName) == "" {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "No update fields provided")
		return
	}
	if err := h.Stores.Users.UpdateName(c.Request.Context(), userID, strings.TrimSpace(req.FullName)); err != nil {
		h.storeError(c, err, "user")
		return
	}
	utils.SendSuccess(c, http.StatusOK, nil, "Profile updated successfully")
}
