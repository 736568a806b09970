package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/timeegg/backend/internal/models"
)

// httpError maps service-layer errors onto HTTP status codes.
func httpError(err error) error {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, models.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Capsule not found")
	case errors.Is(err, models.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this capsule")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
