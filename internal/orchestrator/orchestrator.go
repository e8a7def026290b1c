// Package orchestrator owns the top-level sync loop: discover threads,
// filter through the ledger, visit each eligible thread sequentially with
// randomized pacing, extract attribution, deliver it, and record the
// outcome. Everything runs on a single logical thread; the target surface
// penalizes concurrent access.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/gateway"
	"github.com/vschool/agentsync/internal/ledger"
	"github.com/vschool/agentsync/internal/models"
	"github.com/vschool/agentsync/internal/surface"
	"go.uber.org/zap"
)

const (
	readinessTimeout = 6 * time.Second
	historyStepWait  = 1200 * time.Millisecond
	emptyRetryWait   = 3 * time.Second

	maxHistoryIterations = 40
	maxHistoryStalls     = 3
)

// Discoverer enumerates thread identifiers; implemented by crawler.Crawler.
type Discoverer interface {
	Discover(ctx context.Context, limit int) ([]models.Thread, string, error)
}

// Extractor turns a snapshot into sender tuples; implemented by extract.Extractor.
type Extractor interface {
	Extract(snap *extract.Snapshot) []models.SenderTuple
}

// Gateway delivers tuples downstream; implemented by gateway.Client.
type Gateway interface {
	SubmitSenders(ctx context.Context, conversationID string, senders []models.SenderTuple) (gateway.Result, error)
}

// Options tune one run.
type Options struct {
	Limit int

	// HistoryCutoff bounds how far back each thread's history is scrolled.
	// Zero disables the cutoff check and relies on scroll-progress stalls.
	HistoryCutoff time.Time

	// Loop re-runs the whole pass every Delay. RunForever honors both.
	Loop  bool
	Delay time.Duration

	Debug bool
}

type Orchestrator struct {
	inbox      surface.Inbox
	discoverer Discoverer
	ledger     ledger.Store
	extractor  Extractor
	gateway    Gateway
	pacer      Pacer
	logger     *zap.Logger
	opts       Options

	// Shortened in tests; production uses the package defaults.
	ReadinessTimeout time.Duration
	HistoryStepWait  time.Duration
	EmptyRetryWait   time.Duration
}

func New(inbox surface.Inbox, discoverer Discoverer, ledgerStore ledger.Store,
	extractor Extractor, gw Gateway, pacer Pacer, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.Limit <= 0 {
		opts.Limit = 9999
	}
	return &Orchestrator{
		inbox:            inbox,
		discoverer:       discoverer,
		ledger:           ledgerStore,
		extractor:        extractor,
		gateway:          gw,
		pacer:            pacer,
		logger:           logger,
		opts:             opts,
		ReadinessTimeout: readinessTimeout,
		HistoryStepWait:  historyStepWait,
		EmptyRetryWait:   emptyRetryWait,
	}
}

// Run executes one full pass. A single thread's failure never aborts the
// run; only discovery-level errors do.
func (o *Orchestrator) Run(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{RunID: uuid.New().String()}
	log := o.logger.With(zap.String("run_id", summary.RunID))

	discovered, inboxID, err := o.discoverer.Discover(ctx, o.opts.Limit)
	if err != nil {
		return summary, fmt.Errorf("discovery failed: %w", err)
	}
	if len(discovered) == 0 {
		log.Warn("No conversations discovered, check that the inbox is loaded")
		return summary, nil
	}

	entries, err := o.ledger.Load()
	if err != nil {
		return summary, fmt.Errorf("ledger load failed: %w", err)
	}

	eligible := make([]models.Thread, 0, len(discovered))
	for _, t := range discovered {
		if entry, ok := entries[ledger.Key(t.ID)]; ok && entry.Status == models.SyncSuccess {
			continue
		}
		eligible = append(eligible, t)
	}
	if len(eligible) > o.opts.Limit {
		eligible = eligible[:o.opts.Limit]
	}

	log.Info("Pass starting",
		zap.Int("discovered", len(discovered)),
		zap.Int("already_synced", len(discovered)-len(eligible)),
		zap.Int("eligible", len(eligible)))
	if o.opts.Debug {
		sample := make([]string, 0, 3)
		for i := 0; i < len(discovered) && i < 3; i++ {
			sample = append(sample, discovered[i].ID)
		}
		log.Debug("Ledger state",
			zap.Int("ledger_entries", len(entries)),
			zap.Strings("sample_threads", sample))
	}

	for i, thread := range eligible {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		progress := log.With(
			zap.String("thread", thread.ShortID()),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(eligible))))

		summary.Attempted++
		outcome, err := o.processThread(ctx, thread, inboxID, progress)
		if err != nil {
			progress.Error("Thread failed",
				zap.String("glyph", "❌"),
				zap.String("reason", truncate(err.Error(), 70)))
			if recErr := o.ledger.RecordOutcome(thread.ID, ledger.Outcome{Success: false}); recErr != nil {
				progress.Warn("Ledger update failed, crash-safety lost for this round", zap.Error(recErr))
			}
			continue
		}

		switch {
		case outcome.skipped:
			progress.Info("No sender attribution found, skipping",
				zap.String("glyph", "⊘"))
		case outcome.delivered:
			summary.Succeeded++
			summary.MessagesUpdated += outcome.updated
			progress.Info("Thread synced",
				zap.String("glyph", "✅"),
				zap.Strings("agents", outcome.agents),
				zap.Int("messages_updated", outcome.updated))
			if recErr := o.ledger.RecordOutcome(thread.ID, ledger.Outcome{Success: true, Agents: outcome.agents}); recErr != nil {
				progress.Warn("Ledger update failed, crash-safety lost for this round", zap.Error(recErr))
			}
		default:
			// Delivery ran but the ingestion API rejected it; keep the
			// thread retryable on the next run.
			progress.Warn("Delivery rejected by ingestion API",
				zap.String("glyph", "❌"))
			if recErr := o.ledger.RecordOutcome(thread.ID, ledger.Outcome{Success: false, Agents: outcome.agents}); recErr != nil {
				progress.Warn("Ledger update failed, crash-safety lost for this round", zap.Error(recErr))
			}
		}
	}

	log.Info("Pass complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("attempted", summary.Attempted),
		zap.Int("messages_updated", summary.MessagesUpdated))
	return summary, nil
}

// RunForever repeats Run with the configured inter-round delay until the
// context is canceled. Without Loop it runs exactly once.
func (o *Orchestrator) RunForever(ctx context.Context) error {
	for {
		if _, err := o.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("Pass failed", zap.Error(err))
		}
		if !o.opts.Loop {
			return nil
		}
		o.logger.Info("Waiting for next sync round", zap.Duration("delay", o.opts.Delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.opts.Delay):
		}
	}
}

type threadOutcome struct {
	delivered bool
	skipped   bool
	updated   int
	agents    []string
}

func (o *Orchestrator) processThread(ctx context.Context, thread models.Thread, inboxID string, log *zap.Logger) (threadOutcome, error) {
	clicked, err := o.inbox.SelectThread(ctx, thread.ID)
	if err != nil {
		return threadOutcome{}, fmt.Errorf("selecting thread: %w", err)
	}
	if !clicked {
		log.Debug("Row not rendered in sidebar, falling back to URL navigation")
		if err := o.inbox.NavigateThread(ctx, thread, inboxID); err != nil {
			return threadOutcome{}, fmt.Errorf("navigating to thread: %w", err)
		}
	}

	o.pacer.WaitBetweenThreads(ctx)

	if !o.inbox.WaitForAttribution(ctx, o.ReadinessTimeout) {
		// Not fatal: the conversation may simply have no admin replies.
		log.Debug("No attribution marker within readiness window")
	}

	o.scrollHistoryBack(ctx, log)

	tuples, err := o.extractOnce(ctx)
	if err != nil {
		return threadOutcome{}, err
	}
	if len(tuples) == 0 {
		// One retry: emptiness is often just render lag.
		if err := sleepCtx(ctx, o.EmptyRetryWait); err != nil {
			return threadOutcome{}, err
		}
		if tuples, err = o.extractOnce(ctx); err != nil {
			return threadOutcome{}, err
		}
	}
	if len(tuples) == 0 {
		return threadOutcome{skipped: true}, nil
	}

	result, err := o.gateway.SubmitSenders(ctx, thread.ID, tuples)
	if err != nil {
		return threadOutcome{}, fmt.Errorf("delivering senders: %w", err)
	}

	return threadOutcome{
		delivered: result.Success,
		updated:   result.Updated,
		agents:    distinctNames(tuples),
	}, nil
}

// scrollHistoryBack walks the message pane toward its beginning until the
// configured cutoff becomes visible, progress stalls, or the iteration cap
// is reached. Failures here only shorten the visible history.
func (o *Orchestrator) scrollHistoryBack(ctx context.Context, log *zap.Logger) {
	stalls := 0
	for i := 0; i < maxHistoryIterations; i++ {
		step, err := o.inbox.HistoryScrollStep(ctx)
		if err != nil {
			log.Debug("History scroll stopped", zap.Error(err))
			return
		}
		if !o.opts.HistoryCutoff.IsZero() && !step.OldestVisible.IsZero() &&
			step.OldestVisible.Before(o.opts.HistoryCutoff) {
			log.Debug("History cutoff reached",
				zap.Time("oldest_visible", step.OldestVisible))
			return
		}
		if step.Progressed {
			stalls = 0
		} else {
			stalls++
			if stalls > maxHistoryStalls {
				return
			}
		}
		if err := sleepCtx(ctx, o.HistoryStepWait); err != nil {
			return
		}
	}
}

func (o *Orchestrator) extractOnce(ctx context.Context) ([]models.SenderTuple, error) {
	snap, err := o.inbox.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing snapshot: %w", err)
	}
	return o.extractor.Extract(snap), nil
}

func distinctNames(tuples []models.SenderTuple) []string {
	seen := map[string]bool{}
	var names []string
	for _, t := range tuples {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	return names
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
