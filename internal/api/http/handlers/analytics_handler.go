package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AnalyticsHandler serves the admin dashboard.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analyticsService}
}

// Report GET /analytics?timeRange=7d|30d|90d|1y.
func (h *AnalyticsHandler) Report(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	report, err := h.service.Report(c.UserContext(), user, c.Query("timeRange"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
