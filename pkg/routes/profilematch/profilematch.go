package profilematch

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fescue/pkg/models"
)

type Service interface {
	MatchProfile(ctx context.Context, profileID string, opts models.MatchOptions) (*models.MatchResult, error)
	GetStatus(ctx context.Context, profileID string) (*models.StatusResult, error)
}

// Handler serves the operator routes for a single profile.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register registers profile matching routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/:id/match", h.MatchProfile)
	g.GET("/:id/vip-status", h.GetStatus)
}

// MatchProfile runs the matcher for a profile.
// Query params: force_refresh (bool), phone (override).
// A profile with nothing to match on answers 204.
func (h *Handler) MatchProfile(c echo.Context) error {
	ctx := c.Request().Context()

	profileID := c.Param("id")
	if profileID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}

	opts := models.MatchOptions{
		PhoneNumberOverride: c.QueryParam("phone"),
		Method:              models.MatchMethodManual,
	}
	if raw := c.QueryParam("force_refresh"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "force_refresh must be a boolean")
		}
		opts.ForceRefresh = force
	}

	result, err := h.service.MatchProfile(ctx, profileID, opts)
	if err != nil {
		return err
	}
	if result == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, result)
}

// GetStatus returns the VIP status of any profile
func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.service.GetStatus(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}
