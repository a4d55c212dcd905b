package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketsHandler exposes ticket and thread endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListAll GET /tickets (admin).
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	overviews, err := h.service.ListAllTickets(c.UserContext(), principal, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketOverviewListResponse(overviews)})
}

// ListOwn GET /tickets/me.
func (h *TicketsHandler) ListOwn(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListOwnTickets(c.UserContext(), principal, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// ListForOwner GET /tickets/owner/:ownerId?category=&page=&page_size=.
func (h *TicketsHandler) ListForOwner(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	// Without paging parameters every matching ticket is returned.
	var page service.Page
	if c.Query("page") != "" || c.Query("page_size") != "" {
		page = parsePage(c)
	}
	tickets, err := h.service.ListTicketsForOwner(c.UserContext(), principal, c.Params("ownerId"), c.Query("category"), page)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// Submit POST /tickets. Responds 201 for a new ticket and 200 when the description
// was appended to an active one.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SubmitTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, created, err := h.service.SubmitTicket(c.UserContext(), principal, service.SubmitInput{
		Category:    req.Category,
		Priority:    req.Priority,
		Description: req.Description,
		TargetID:    req.TargetID,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket), "created": created})
}

// Reply POST /tickets/:id/reply (admin).
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.service.ReplyToTicket(c.UserContext(), principal, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReplyResponse{Success: result.Success, Message: result.Message}})
}

// Resolve PUT /tickets/:id/resolve (admin).
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ResolveTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ResolveTicket(c.UserContext(), principal, c.Params("id"), req.Status, req.ResolutionNote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Delete DELETE /tickets/:id (admin).
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DeleteTicketResponse{Deleted: true}})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketMessageListResponse(msgs)})
}

// AppendMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AppendMessage(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AppendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.service.AppendMessage(c.UserContext(), principal, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketMessageResponse(msg)})
}

// ClearMessages DELETE /tickets/:id/messages.
func (h *TicketsHandler) ClearMessages(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	count, err := h.service.ClearMessages(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClearMessagesResponse{DeletedCount: count}})
}

func currentPrincipal(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func parsePage(c *fiber.Ctx) service.Page {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return service.Page{Limit: pageSize, Offset: (page - 1) * pageSize}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
