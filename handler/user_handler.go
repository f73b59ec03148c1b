package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Skryldev/user-service/models"
	"github.com/Skryldev/user-service/service"
	"github.com/gin-gonic/gin"
)

// UserHandler exposes the user service over HTTP.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

// Register mounts the user routes on r.
func (h *UserHandler) Register(r gin.IRouter) {
	v1 := r.Group("/v1/users")
	v1.GET("", h.ListUsers)
	v1.GET("/:userId", h.GetUser)
	v1.POST("", h.CreateUser)
	v1.PATCH("/:userId", h.UpdateUser)
	v1.DELETE("/:userId", h.DeleteUser)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.FindAll(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list users failed", "error", err)
		RespondWithError(c, http.StatusInternalServerError, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		h.respondWithServiceError(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	req, ok := bindUserRequest(c)
	if !ok {
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "create user failed", "error", err)
		RespondWithError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	req, ok := bindUserRequest(c)
	if !ok {
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondWithServiceError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.respondWithServiceError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) respondWithServiceError(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrNotFound) {
		RespondWithError(c, http.StatusNotFound, err.Error())
		return
	}
	h.logger.ErrorContext(c.Request.Context(), message, "error", err)
	RespondWithError(c, http.StatusInternalServerError, message)
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

func bindUserRequest(c *gin.Context) (models.CreateUserRequest, bool) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return req, false
	}
	return req, true
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health answers 200 while p is reachable and 503 otherwise.
func Health(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
