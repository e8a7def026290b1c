package models

import "time"

type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// LedgerEntry records the last-known synchronization outcome for a thread.
// Entries are overwritten whole on each attempt; a success entry permanently
// excludes the thread from future eligible sets.
type LedgerEntry struct {
	SyncedAt time.Time  `json:"syncedAt"`
	Status   SyncStatus `json:"status"`
	Agents   []string   `json:"agents"`
}
