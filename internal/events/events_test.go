package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	ev := NewEvent(TypeLeadQualified, "agent-1", "follower-1", map[string]string{"score": "0.75"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeLeadQualified, ev.Type)
	assert.Equal(t, "agent-1", ev.AgentID)
	assert.Equal(t, "follower-1", ev.FollowerID)
	assert.Equal(t, "0.75", ev.Payload["score"])
	assert.False(t, ev.OccurredAt.Before(before))

	other := NewEvent(TypeLeadQualified, "agent-1", "follower-1", nil)
	assert.NotEqual(t, ev.ID, other.ID, "each event gets a fresh id")
}

func TestEventJSONShape(t *testing.T) {
	ev := NewEvent(TypeStatusChanged, "agent-1", "follower-1", map[string]string{"status": "hot"})
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "follower.status_changed", decoded["type"])
	assert.Contains(t, decoded, "occurred_at")

	// Empty payload is omitted entirely.
	bare := NewEvent(TypeEscalation, "agent-1", "follower-1", nil)
	data, err = json.Marshal(bare)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "payload")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeEscalation, "a", "f", nil)))
	assert.NoError(t, p.Close())
}
