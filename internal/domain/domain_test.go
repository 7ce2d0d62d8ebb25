package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingIndicatorActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ind := TypingIndicator{ExpiresAt: now.Add(time.Second)}

	assert.True(t, ind.Active(now))
	assert.False(t, ind.Active(now.Add(time.Second)), "expires_at == now is inactive")
	assert.False(t, ind.Active(now.Add(2*time.Second)))
}

func TestParsePresenceStatus(t *testing.T) {
	for _, raw := range []string{"online", "away", "busy", "offline"} {
		s, err := ParsePresenceStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, PresenceStatus(raw), s)
	}
	_, err := ParsePresenceStatus("invisible")
	assert.Error(t, err)
	_, err = ParsePresenceStatus("Online")
	assert.Error(t, err)
}

func TestTicketPatchFields(t *testing.T) {
	title := "Printer on fire"
	status := TicketStatusPending
	empty := ""
	patch := TicketPatch{Title: &title, Status: &status, AssigneeID: &empty}

	assert.Equal(t, []string{"title", "status", "assignee_id"}, patch.Fields())
	assert.Empty(t, TicketPatch{}.Fields())
}

func TestAgentRoleCanEdit(t *testing.T) {
	assert.True(t, AgentRoleAdmin.CanEdit())
	assert.True(t, AgentRoleAgent.CanEdit())
	assert.False(t, AgentRoleViewer.CanEdit())
}
