package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvitationStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to InvitationStatus
	}{
		{InvitationPending, InvitationInvited},
		{InvitationInvited, InvitationConfirmed},
		{InvitationInvited, InvitationDeclined},
		{InvitationInvited, InvitationTimeout},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to InvitationStatus
	}{
		{InvitationPending, InvitationConfirmed},
		{InvitationPending, InvitationDeclined},
		{InvitationPending, InvitationTimeout},
		{InvitationConfirmed, InvitationDeclined},
		{InvitationConfirmed, InvitationInvited},
		{InvitationDeclined, InvitationConfirmed},
		{InvitationTimeout, InvitationInvited},
		{InvitationInvited, InvitationPending},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, InvitationPending.Terminal())
	assert.False(t, InvitationInvited.Terminal())
	assert.True(t, InvitationConfirmed.Terminal())
	assert.True(t, InvitationDeclined.Terminal())
	assert.True(t, InvitationTimeout.Terminal())
}

func TestPlayerFullName(t *testing.T) {
	p := Player{FirstName: "Alice", LastName: "Chen"}
	assert.Equal(t, "Alice Chen", p.FullName())

	p.LastName = ""
	assert.Equal(t, "Alice", p.FullName())
}
