package auth

import (
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Guard decides what a principal may do with tickets.
type Guard struct {
	adminEmails map[string]struct{}
}

// NewGuard builds a guard that treats the given addresses as admins regardless of role.
func NewGuard(adminEmails ...string) *Guard {
	set := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return &Guard{adminEmails: set}
}

// IsAdmin reports whether the principal carries admin capability.
func (g *Guard) IsAdmin(p domain.Principal) bool {
	if domain.ParseRole(string(p.Role)) == domain.RoleAdmin {
		return true
	}
	_, ok := g.adminEmails[strings.ToLower(strings.TrimSpace(p.Email))]
	return ok
}

// CanAccess reports whether the principal may read or write the ticket and its thread.
func (g *Guard) CanAccess(p domain.Principal, ticket *domain.Ticket) bool {
	if g.IsAdmin(p) {
		return true
	}
	return ticket != nil && p.ID != "" && p.ID == ticket.OwnerID
}

// CanActFor reports whether the principal may act on tickets owned by ownerID.
func (g *Guard) CanActFor(p domain.Principal, ownerID string) bool {
	return g.IsAdmin(p) || (p.ID != "" && p.ID == ownerID)
}

// Authorize returns Forbidden unless CanAccess holds.
func (g *Guard) Authorize(p domain.Principal, ticket *domain.Ticket) error {
	if !g.CanAccess(p, ticket) {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

// RequireAdmin returns Forbidden for non-admin principals.
func (g *Guard) RequireAdmin(p domain.Principal) error {
	if !g.IsAdmin(p) {
		return apperrors.NewForbidden("admin access required")
	}
	return nil
}

// SenderRole is the thread role recorded for messages written by p.
func (g *Guard) SenderRole(p domain.Principal) domain.Role {
	if g.IsAdmin(p) {
		return domain.RoleAdmin
	}
	return domain.ParseRole(string(p.Role))
}
