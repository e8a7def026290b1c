package models

import "time"

// SenderTuple is one sender attribution extracted from a rendered thread.
// MessageID and MessageText are nil when only conversation-level
// attribution could be recovered.
type SenderTuple struct {
	Name        string  `json:"name"`
	MessageID   *string `json:"messageId"`
	MessageText *string `json:"messageText"`
}

// DedupKey identifies a tuple within one extraction pass. An id-based key
// always wins over a text-based one.
func (s SenderTuple) DedupKey() string {
	if s.MessageID != nil && *s.MessageID != "" {
		return s.Name + "|ID|" + *s.MessageID
	}
	text := "none"
	if s.MessageText != nil && *s.MessageText != "" {
		text = *s.MessageText
		if r := []rune(text); len(r) > 100 {
			text = string(r[:100])
		}
	}
	return s.Name + "|TXT|" + text
}

// Message is a persisted conversation message. ExternalID is the upsert
// idempotency key.
type Message struct {
	ExternalID     string      `json:"external_id"`
	ConversationID string      `json:"conversation_id"`
	SessionID      string      `json:"session_id"`
	FromID         string      `json:"from_id"`
	FromName       string      `json:"from_name"`
	Content        string      `json:"content"`
	IntentKey      *string     `json:"intent_key,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Attachment carries the first attachment of a message, if any.
type Attachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Conversation links a thread to its external participant.
type Conversation struct {
	ID              string    `json:"id"`
	Channel         string    `json:"channel"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	LastMessageAt   time.Time `json:"last_message_at"`
}

// RunSummary is the outcome of one orchestrator pass.
type RunSummary struct {
	RunID           string `json:"run_id"`
	Attempted       int    `json:"attempted"`
	Succeeded       int    `json:"succeeded"`
	MessagesUpdated int    `json:"messages_updated"`
}
