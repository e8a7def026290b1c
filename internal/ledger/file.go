package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vschool/agentsync/internal/models"
	"go.uber.org/zap"
)

// FileStore keeps the ledger as a pretty-printed JSON object on disk and
// appends one audit line per successful sync to a separate log file. The
// audit log is write-only; it exists for human review, nothing reads it back.
//
// Updates are full read-modify-write cycles. That is safe because the
// orchestrator is the ledger's only writer and runs single-threaded; a
// second concurrent instance is guarded against by the run lock, not here.
type FileStore struct {
	path      string
	auditPath string
	logger    *zap.Logger
	now       func() time.Time
}

func NewFileStore(path, auditPath string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:      path,
		auditPath: auditPath,
		logger:    logger,
		now:       time.Now,
	}
}

// Load reads the full ledger. A missing or corrupt file degrades to an
// empty ledger: re-syncing an already-synced thread is preferable to
// aborting the whole run.
func (s *FileStore) Load() (map[string]models.LedgerEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Ledger unreadable, starting from empty",
				zap.Error(err), zap.String("path", s.path))
		}
		return map[string]models.LedgerEntry{}, nil
	}

	entries := map[string]models.LedgerEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("Ledger corrupt, starting from empty",
			zap.Error(err), zap.String("path", s.path))
		return map[string]models.LedgerEntry{}, nil
	}
	return entries, nil
}

// RecordOutcome overwrites the entry for threadID and persists the whole
// ledger atomically (write to temp file, then rename). Success outcomes are
// additionally appended to the audit log.
func (s *FileStore) RecordOutcome(threadID string, outcome Outcome) error {
	key := Key(threadID)

	entries, err := s.Load()
	if err != nil {
		return err
	}

	status := models.SyncFailed
	if outcome.Success {
		status = models.SyncSuccess
	}
	agents := outcome.Agents
	if agents == nil {
		agents = []string{}
	}
	entries[key] = models.LedgerEntry{
		SyncedAt: s.now().UTC(),
		Status:   status,
		Agents:   agents,
	}

	if err := s.save(entries); err != nil {
		return fmt.Errorf("error saving ledger: %w", err)
	}

	if outcome.Success {
		s.appendAudit(key, agents)
	}
	return nil
}

func (s *FileStore) save(entries map[string]models.LedgerEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) appendAudit(threadID string, agents []string) {
	names := "n/a"
	if len(agents) > 0 {
		names = strings.Join(agents, ", ")
	}
	line := fmt.Sprintf("[%s] Synced: %s | Agents: %s\n",
		s.now().UTC().Format(time.RFC3339), threadID, names)

	if dir := filepath.Dir(s.auditPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("Audit log directory unavailable", zap.Error(err))
			return
		}
	}
	f, err := os.OpenFile(s.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("Audit log unavailable", zap.Error(err), zap.String("path", s.auditPath))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		s.logger.Warn("Audit log write failed", zap.Error(err))
	}
}
