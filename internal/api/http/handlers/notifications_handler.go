package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
)

// NotificationsHandler lists persisted notifications for the caller.
type NotificationsHandler struct {
	service *service.TicketService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(ticketService *service.TicketService) *NotificationsHandler {
	return &NotificationsHandler{service: ticketService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	notifications, err := h.service.ListNotifications(c.UserContext(), principal, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationListResponse(notifications)})
}
