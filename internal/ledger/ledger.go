// Package ledger persists the per-thread synchronization outcome that makes
// repeated runs idempotent: a thread recorded as success is never selected
// for processing again.
package ledger

import (
	"strings"

	"github.com/vschool/agentsync/internal/models"
)

// Outcome is the result of one processing attempt for a thread.
type Outcome struct {
	Success bool
	Agents  []string
}

// Store is the sync ledger. Load returns the full map of recorded entries;
// RecordOutcome overwrites (never merges) the entry for one thread.
type Store interface {
	Load() (map[string]models.LedgerEntry, error)
	RecordOutcome(threadID string, outcome Outcome) error
}

// Key normalizes a thread identifier into its ledger key. Trimming is the
// only normalization applied; the trimmed id is used verbatim.
func Key(threadID string) string {
	return strings.TrimSpace(threadID)
}
