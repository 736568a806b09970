package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/timeegg/backend/internal/capsule"
	"github.com/timeegg/backend/internal/geo"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/unlock"
)

// CapsuleHandler handles HTTP requests related to time capsules.
type CapsuleHandler struct {
	service *capsule.Service
}

// NewCapsuleHandler creates a new CapsuleHandler.
func NewCapsuleHandler(service *capsule.Service) *CapsuleHandler {
	return &CapsuleHandler{service: service}
}

// RegisterCapsuleRoutes registers capsule-related routes.
func (h *CapsuleHandler) RegisterCapsuleRoutes(g *echo.Group) {
	g.POST("/capsules", h.CreateCapsule)
	g.GET("/capsules", h.ListCapsules)
	g.GET("/capsules/nearby", h.NearbyCapsules)
	g.GET("/capsules/:id", h.GetCapsule)
	g.PATCH("/capsules/:id", h.UpdateCapsule)
	g.DELETE("/capsules/:id", h.DeleteCapsule)
	g.POST("/capsules/:id/unlock", h.AttemptUnlock)
	g.POST("/capsules/:id/photos", h.AddPhotos)
	g.DELETE("/capsules/:id/photos", h.RemovePhotos)
}

// evalContext builds the point-in-time evaluation context from the request.
// The device fix travels in the lat/lon query params; tz names the IANA zone
// whose wall clock governs time-of-day windows (UTC when absent). A missing
// fix is a valid "unknown location" input.
func evalContext(c echo.Context) unlock.Context {
	evalCtx := unlock.Context{Now: time.Now().UTC()}

	if tz := c.QueryParam("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			evalCtx.Now = time.Now().In(loc)
		}
	}

	latStr, lonStr := c.QueryParam("lat"), c.QueryParam("lon")
	if latStr == "" || lonStr == "" {
		return evalCtx
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil || !geo.ValidCoordinates(lat, lon) {
		return evalCtx
	}
	evalCtx.Location = &geo.Point{Latitude: lat, Longitude: lon}
	return evalCtx
}

func decodePhotos(encoded []string) ([][]byte, error) {
	photos := make([][]byte, 0, len(encoded))
	for _, p := range encoded {
		data, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "photos must be base64-encoded")
		}
		photos = append(photos, data)
	}
	return photos, nil
}

// CreateCapsule creates a new time capsule.
func (h *CapsuleHandler) CreateCapsule(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.CreateCapsuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	photos, err := decodePhotos(req.Photos)
	if err != nil {
		return err
	}

	in := capsule.CreateInput{
		CreatorID:        firebaseUID,
		Title:            req.Title,
		Memo:             req.Memo,
		Privacy:          req.Privacy,
		SharedUserEmails: req.SharedUserEmails,
		SharedUserIDs:    req.SharedUserIDs,
		Photos:           photos,
		Condition:        conditionFromRequest(req.Condition),
		NearbyUserIDs:    req.NearbyUserIDs,
	}
	if req.ClientLatitude != nil && req.ClientLongitude != nil {
		in.CreatorLocation = &geo.Point{Latitude: *req.ClientLatitude, Longitude: *req.ClientLongitude}
	}

	created, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func conditionFromRequest(req *models.ConditionRequest) *models.UnlockCondition {
	if req == nil {
		return nil
	}
	cond := &models.UnlockCondition{Weather: req.Weather}
	if req.Location != nil {
		cond.Location = &models.LocationCondition{
			Latitude:     req.Location.Latitude,
			Longitude:    req.Location.Longitude,
			Address:      req.Location.Address,
			RadiusMeters: req.Location.RadiusMeters,
		}
	}
	if req.TargetAt != nil || req.TimeRange != nil {
		cond.Time = &models.TimeCondition{TargetDate: req.TargetAt}
		if req.TimeRange != nil {
			cond.Time.Range = &models.TimeRange{Start: req.TimeRange.Start, End: req.TimeRange.End}
		}
	}
	return cond
}

// GetCapsule retrieves a single capsule, redacted when locked.
func (h *CapsuleHandler) GetCapsule(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	view, err := h.service.Get(c.Request().Context(), firebaseUID, c.Param("id"), evalContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListCapsules retrieves every capsule visible to the requester.
func (h *CapsuleHandler) ListCapsules(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	views, err := h.service.List(c.Request().Context(), firebaseUID, evalContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// NearbyCapsules retrieves public capsules around the supplied point.
func (h *CapsuleHandler) NearbyCapsules(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	evalCtx := evalContext(c)
	if evalCtx.Location == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lon query parameters are required")
	}
	radius, _ := strconv.ParseFloat(c.QueryParam("radius"), 64)

	views, err := h.service.Nearby(c.Request().Context(), firebaseUID, *evalCtx.Location, radius, evalCtx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// AttemptUnlock re-evaluates the capsule's conditions against the caller's
// current location and time.
func (h *CapsuleHandler) AttemptUnlock(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	verdict, err := h.service.AttemptUnlock(c.Request().Context(), firebaseUID, c.Param("id"), evalContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, verdict)
}

// UpdateCapsule edits title, memo, or privacy. Creator only.
func (h *CapsuleHandler) UpdateCapsule(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.UpdateCapsuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.service.Update(c.Request().Context(), firebaseUID, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteCapsule removes the capsule and its photos. Creator only.
func (h *CapsuleHandler) DeleteCapsule(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	if err := h.service.Delete(c.Request().Context(), firebaseUID, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddPhotos appends photos to an existing capsule. Creator only.
func (h *CapsuleHandler) AddPhotos(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.AddPhotosRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	photos, err := decodePhotos(req.Photos)
	if err != nil {
		return err
	}

	updated, err := h.service.AddPhotos(c.Request().Context(), firebaseUID, c.Param("id"), photos)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// RemovePhotos detaches and deletes the named photos. Creator only.
func (h *CapsuleHandler) RemovePhotos(c echo.Context) error {
	firebaseUID := c.Get("firebaseUID").(string)

	var req models.RemovePhotosRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.service.RemovePhotos(c.Request().Context(), firebaseUID, c.Param("id"), req.PhotoURLs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}
