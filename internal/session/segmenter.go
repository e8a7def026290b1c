// Package session partitions a conversation's message history into
// time-and-intent-bounded sessions. Segmentation is a pure function: it
// performs no I/O and recomputing it over the same history yields the same
// assignments, so the batch pipeline can re-run it from scratch at any time.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/vschool/agentsync/internal/models"
)

// InactivityGap is the silence that closes a session. A message arriving
// more than this long after its predecessor starts a new session.
const InactivityGap = 30 * time.Minute

// IntentKeyFunc extracts the originating intent (e.g. ad identifier) of a
// message, or nil when the message carries none.
type IntentKeyFunc func(*models.Message) *string

// ID derives the deterministic session identifier from the participant and
// the UTC timestamp of the session's first message.
func ID(participantID string, start time.Time) string {
	u := start.UTC()
	return fmt.Sprintf("session_%s_%s_%s", u.Format("20060102"), u.Format("150405"), participantID)
}

// Segment assigns a session identifier to every message of one participant's
// conversation, keyed by the message's external id. A new session starts on
// the first message, after a gap longer than InactivityGap, or when the
// intent key changes from one non-nil value to a different non-nil value.
//
// The input need not be sorted; messages are ordered by timestamp first,
// with ties broken by input position, so any permutation of the same history
// produces identical assignments.
func Segment(participantID string, messages []*models.Message, intentKeyOf IntentKeyFunc) map[string]string {
	if intentKeyOf == nil {
		intentKeyOf = func(m *models.Message) *string { return m.IntentKey }
	}

	ordered := make([]*models.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	assignments := make(map[string]string, len(ordered))

	var (
		currentID  string
		lastTime   time.Time
		lastIntent *string
		started    bool
	)

	for _, msg := range ordered {
		intent := intentKeyOf(msg)

		timedOut := started && msg.CreatedAt.Sub(lastTime) > InactivityGap
		newIntent := started && lastIntent != nil && intent != nil && *intent != *lastIntent

		if !started || timedOut || newIntent {
			currentID = ID(participantID, msg.CreatedAt)
		}

		assignments[msg.ExternalID] = currentID
		started = true
		lastTime = msg.CreatedAt
		lastIntent = intent
	}

	return assignments
}
