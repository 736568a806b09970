package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/repositories"
	"gorm.io/gorm"
)

// UserHandler handles HTTP requests related to user profiles.
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterAuthRoutes registers the registration route. It sits behind the
// Firebase auth middleware: the client signs in with Firebase first, then
// creates its profile row here.
func (h *UserHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
}

// RegisterProfileRoutes registers profile-related routes.
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/search", h.SearchUsers)
}

// Register creates the profile row for the authenticated Firebase user.
func (h *UserHandler) Register(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.RegisterUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if existing, err := h.userRepository.GetUserByFirebaseUID(firebaseUID); err == nil {
		return c.JSON(http.StatusOK, existing)
	}

	user := &models.User{
		Name:        req.Name,
		Email:       req.Email,
		FirebaseUID: firebaseUID,
		DeviceToken: req.DeviceToken,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

// GetProfile retrieves the authenticated user's profile.
func (h *UserHandler) GetProfile(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	user, err := h.userRepository.GetUserByFirebaseUID(firebaseUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's mutable profile fields.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByFirebaseUID(firebaseUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.DeviceToken != "" {
		user.DeviceToken = req.DeviceToken
	}
	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// SearchUsers searches registered users by name or email, used when picking
// people to share a capsule with.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing search query")
	}

	users, err := h.userRepository.SearchUsers(query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}
