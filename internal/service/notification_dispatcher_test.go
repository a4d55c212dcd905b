package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestBuildStatusNotificationTruthTable(t *testing.T) {
	base := domain.Ticket{
		ID:      "0123456789abcdef",
		OwnerID: "u1",
		Status:  domain.TicketStatusOpen,
	}

	cases := []struct {
		name     string
		status   domain.TicketStatus
		note     string
		wantBody string
		wantKind domain.NotificationKind
	}{
		{
			name:     "status and note",
			status:   domain.TicketStatusResolved,
			note:     "Refund issued",
			wantBody: `Your report (ID: 01234567) status has been updated to: resolved. Admin response: "Refund issued"`,
			wantKind: domain.NotificationKindSuccess,
		},
		{
			name:     "status only",
			status:   domain.TicketStatusInProgress,
			wantBody: `Your report (ID: 01234567) status has been updated to: in-progress`,
			wantKind: domain.NotificationKindInfo,
		},
		{
			name:     "note only",
			status:   domain.TicketStatusOpen,
			note:     "Looking into it",
			wantBody: `Admin has responded to your report (ID: 01234567): "Looking into it"`,
			wantKind: domain.NotificationKindInfo,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updated := base
			updated.Status = tc.status
			updated.ResolutionNote = tc.note

			n := BuildStatusNotification(&base, &updated)
			require.NotNil(t, n)
			assert.Equal(t, tc.wantBody, n.Body)
			assert.Equal(t, tc.wantKind, n.Kind)
			assert.Equal(t, "New Support Reply", n.Title)
			assert.Equal(t, "u1", n.RecipientID)
			assert.Equal(t, base.ID, n.RelatedTicketID)
		})
	}
}

func TestBuildStatusNotificationSkipsSilentChanges(t *testing.T) {
	old := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, ResolutionNote: "previous"}

	same := old
	assert.Nil(t, BuildStatusNotification(&old, &same))

	cleared := old
	cleared.ResolutionNote = ""
	assert.Nil(t, BuildStatusNotification(&old, &cleared))

	clearedWithStatus := cleared
	clearedWithStatus.Status = domain.TicketStatusResolved
	n := BuildStatusNotification(&old, &clearedWithStatus)
	require.NotNil(t, n)
	assert.Equal(t, "Your report (ID: t1) status has been updated to: resolved", n.Body)
}

func TestBuildReplyNotificationTruncatesPreview(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", OwnerID: "u1"}

	short := BuildReplyNotification(ticket, "Thanks")
	assert.Equal(t, `Admin replied to your support ticket: "Thanks"...`, short.Body)
	assert.Equal(t, domain.NotificationKindInfo, short.Kind)

	long := BuildReplyNotification(ticket, "0123456789012345678901234567890123456789012345678901234567890")
	assert.Equal(t, `Admin replied to your support ticket: "01234567890123456789012345678901234567890123456789"...`, long.Body)
}
