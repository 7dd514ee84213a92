package vip

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fescue/pkg/apperrors"
	appctx "github.com/Ramsey-B/fescue/pkg/context"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/utils"
)

type Service interface {
	GetStatus(ctx context.Context, profileID string) (*models.StatusResult, error)
	LinkByPhone(ctx context.Context, profileID, phone string) (*models.StatusResult, error)
}

// Handler serves the signed-in profile's VIP endpoints.
type Handler struct {
	service Service
	logger  ectologger.Logger
}

func NewHandler(service Service, logger ectologger.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers VIP routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/status", h.GetStatus)
	g.POST("/link-by-phone", h.LinkByPhone)
}

// GetStatus returns the VIP status of the signed-in profile
func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	profileID, err := profileFromContext(ctx)
	if err != nil {
		return err
	}

	status, err := h.service.GetStatus(ctx, profileID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

// LinkByPhone links the signed-in profile to the CRM customer with the given phone number.
// Expected outcomes are answered with success=false instead of an error body.
func (h *Handler) LinkByPhone(c echo.Context) error {
	ctx := c.Request().Context()

	profileID, err := profileFromContext(ctx)
	if err != nil {
		return err
	}

	body, err := utils.BindRequest[models.LinkByPhoneRequest](c)
	if err != nil {
		return err
	}

	status, err := h.service.LinkByPhone(ctx, profileID, body.PhoneNumber)
	switch {
	case errors.Is(err, apperrors.ErrNoMatchFound):
		return c.JSON(http.StatusNotFound, models.LinkByPhoneResponse{Error: apperrors.CodeNoMatchFound})
	case errors.Is(err, apperrors.ErrAlreadyLinkedElsewhere):
		return c.JSON(http.StatusConflict, models.LinkByPhoneResponse{Error: apperrors.CodeAlreadyLinkedElsewhere})
	case err != nil:
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"profile_id": profileID,
		"status":     status.Status,
	}).Info("Linked profile by phone")

	return c.JSON(http.StatusOK, models.LinkByPhoneResponse{
		Success:            true,
		Status:             status.Status,
		ExternalCustomerID: status.ExternalCustomerID,
	})
}

func profileFromContext(ctx context.Context) (string, error) {
	profileID := appctx.GetUserID(ctx)
	if profileID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return profileID, nil
}
