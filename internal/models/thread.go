package models

import "strings"

// ThreadKind is the channel variant a thread belongs to.
type ThreadKind string

const (
	ThreadKindFBMessage ThreadKind = "FB_MESSAGE"
	ThreadKindInstagram ThreadKind = "INSTAGRAM_MESSAGE"
)

// Thread identifies one conversation on the external surface. The ID is
// opaque and immutable once discovered; InboxID names the mailbox/page the
// thread was found in.
type Thread struct {
	ID      string     `json:"thread_id"`
	Kind    ThreadKind `json:"thread_kind"`
	InboxID string     `json:"inbox_id"`
}

// NewThread trims the identifier and applies the default kind. The trimmed
// ID is used verbatim as the ledger key, no further normalization.
func NewThread(id string, kind ThreadKind, inboxID string) Thread {
	if kind == "" {
		kind = ThreadKindFBMessage
	}
	return Thread{ID: strings.TrimSpace(id), Kind: kind, InboxID: inboxID}
}

// ShortID returns the tail of the identifier for progress output.
func (t Thread) ShortID() string {
	if len(t.ID) <= 12 {
		return t.ID
	}
	return t.ID[len(t.ID)-12:]
}
