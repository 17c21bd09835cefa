package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Country  string `json:"country"`
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Country  string `json:"country"`
	Role     string `json:"role" binding:"required"`
}

// UserResponse excludes sensitive info like password hash
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Country   string      `json:"country,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// --- Handler Methods ---

// Register creates a self-service account. New accounts always start as
// general public; elevation goes through the upgrade request flow.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Country)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			abortWithMessage(c, http.StatusConflict, err.Error())
		} else {
			abortWithMessage(c, http.StatusInternalServerError, "an unexpected error occurred during registration")
		}
		return
	}

	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Login authenticates a user and returns a JWT token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			abortWithMessage(c, http.StatusUnauthorized, err.Error())
		} else {
			abortWithMessage(c, http.StatusInternalServerError, "an unexpected error occurred during login")
		}
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  MapUserToResponse(user),
	})
}

// CreateUser lets an admin create an account with an explicit role,
// bypassing the upgrade request flow entirely.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	actorRole, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithMessage(c, http.StatusInternalServerError, "failed to resolve caller role")
		return
	}

	user, err := h.authService.CreateUser(c.Request.Context(), actorRole, req.Name, req.Email, req.Password, req.Country, role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAdminOnly):
			abortWithMessage(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrUserAlreadyExists):
			abortWithMessage(c, http.StatusConflict, err.Error())
		default:
			abortWithMessage(c, http.StatusInternalServerError, "an unexpected error occurred during user creation")
		}
		return
	}

	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        user.ID.Hex(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Country:   user.Country,
		CreatedAt: user.CreatedAt,
	}
}
