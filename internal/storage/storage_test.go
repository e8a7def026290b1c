package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vschool/agentsync/internal/models"
	"github.com/vschool/agentsync/internal/session"
	"go.uber.org/zap"
)

func msg(externalID, convID string, at time.Time, intent *string) *models.Message {
	return &models.Message{
		ExternalID:     externalID,
		ConversationID: convID,
		FromID:         "u1",
		FromName:       "Customer",
		Content:        "hello",
		IntentKey:      intent,
		CreatedAt:      at,
	}
}

func TestMemoryUpsertMessageIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMessage(msg("m1", "c1", at, nil)))
	require.NoError(t, store.UpsertMessage(msg("m1", "c1", at, nil)))

	msgs, err := store.ListMessages("c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryUpsertPreservesSessionAssignment(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMessage(msg("m1", "c1", at, nil)))
	require.NoError(t, store.UpdateSessionAssignments("c1", map[string]string{
		"m1": "session_20250301_100000_u1",
	}))

	// Replaying the same message must not clear the assignment.
	require.NoError(t, store.UpsertMessage(msg("m1", "c1", at, nil)))

	msgs, err := store.ListMessages("c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "session_20250301_100000_u1", msgs[0].SessionID)
}

func TestMemoryListMessagesOrdered(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertMessage(msg("m2", "c1", base.Add(time.Minute), nil)))
	require.NoError(t, store.UpsertMessage(msg("m1", "c1", base, nil)))
	require.NoError(t, store.UpsertMessage(msg("x1", "other", base, nil)))

	msgs, err := store.ListMessages("c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ExternalID)
	assert.Equal(t, "m2", msgs[1].ExternalID)
}

func TestPipelineAssignsAndConverges(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertConversation(&models.Conversation{
		ID:            "c1",
		Channel:       "facebook",
		ParticipantID: "u1",
		LastMessageAt: base.Add(45 * time.Minute),
	}))
	require.NoError(t, store.UpsertMessage(msg("m1", "c1", base, nil)))
	require.NoError(t, store.UpsertMessage(msg("m2", "c1", base.Add(10*time.Minute), nil)))
	require.NoError(t, store.UpsertMessage(msg("m3", "c1", base.Add(45*time.Minute), nil)))

	p := NewPipeline(store, zap.NewNop())

	stats, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 3, stats.Messages)
	assert.Equal(t, 3, stats.Reassigned)

	msgs, err := store.ListMessages("c1")
	require.NoError(t, err)
	first := session.ID("u1", base)
	second := session.ID("u1", base.Add(45*time.Minute))
	assert.Equal(t, first, msgs[0].SessionID)
	assert.Equal(t, first, msgs[1].SessionID)
	assert.Equal(t, second, msgs[2].SessionID, "35-minute gap opens a new session")

	// Second pass over unchanged history is a no-op.
	stats, err = p.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Reassigned)
}

func TestPipelineRespectsIntentBoundary(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	adA, adB := "ad_a", "ad_b"

	require.NoError(t, store.UpsertConversation(&models.Conversation{
		ID: "c1", ParticipantID: "u1", LastMessageAt: base.Add(2 * time.Minute),
	}))
	require.NoError(t, store.UpsertMessage(msg("m1", "c1", base, &adA)))
	require.NoError(t, store.UpsertMessage(msg("m2", "c1", base.Add(time.Minute), &adB)))

	_, err := NewPipeline(store, zap.NewNop()).Run()
	require.NoError(t, err)

	msgs, err := store.ListMessages("c1")
	require.NoError(t, err)
	assert.NotEqual(t, msgs[0].SessionID, msgs[1].SessionID,
		"intent change splits even without an inactivity gap")
}
