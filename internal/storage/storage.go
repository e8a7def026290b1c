package storage

import "github.com/vschool/agentsync/internal/models"

// MessageStore persists conversations and their messages for the batch
// session pipeline. UpsertMessage keys on the message's external id, so
// replaying the same history is a no-op.
type MessageStore interface {
	UpsertConversation(conv *models.Conversation) error
	UpsertMessage(msg *models.Message) error

	ListConversations() ([]*models.Conversation, error)
	// ListMessages returns a conversation's messages ordered by creation
	// time ascending.
	ListMessages(conversationID string) ([]*models.Message, error)

	// UpdateSessionAssignments rewrites session ids for the given messages,
	// keyed by external id.
	UpdateSessionAssignments(conversationID string, assignments map[string]string) error

	Close() error
}
