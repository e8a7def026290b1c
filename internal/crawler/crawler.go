// Package crawler exhaustively enumerates thread identifiers from the
// virtualized inbox list. The list has no stable cursor: only visible rows
// exist, so the crawler scrolls in fixed increments, re-snapshots, and
// stops once escalating recovery attempts no longer grow the set. Partial
// results are valid; completeness is pursued across repeated runs.
package crawler

import (
	"context"
	"time"

	"github.com/vschool/agentsync/internal/models"
	"github.com/vschool/agentsync/internal/surface"
	"go.uber.org/zap"
)

const (
	defaultScrollIncrement = 1500
	defaultMaxRounds       = 250
	defaultSettle          = 2500 * time.Millisecond

	// A keyboard page advance every few rounds defeats lazy-render
	// heuristics that ignore programmatic scroll events.
	keyboardAdvanceEvery = 4
)

type Crawler struct {
	inbox  surface.Inbox
	logger *zap.Logger

	ScrollIncrement int
	MaxRounds       int
	Settle          time.Duration
}

func New(inbox surface.Inbox, logger *zap.Logger) *Crawler {
	return &Crawler{
		inbox:           inbox,
		logger:          logger,
		ScrollIncrement: defaultScrollIncrement,
		MaxRounds:       defaultMaxRounds,
		Settle:          defaultSettle,
	}
}

// Discover scrolls the thread list until limit identifiers are accumulated,
// the recovery ladder is exhausted, or the round cap is hit. The returned
// slice preserves discovery order and contains no duplicates.
func (c *Crawler) Discover(ctx context.Context, limit int) ([]models.Thread, string, error) {
	seen := map[string]bool{}
	var threads []models.Thread
	var inboxID string

	merge := func() error {
		visible, err := c.inbox.VisibleThreads(ctx)
		if err != nil {
			return err
		}
		for _, t := range visible {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			threads = append(threads, t)
			if inboxID == "" && t.InboxID != "" {
				inboxID = t.InboxID
			}
		}
		return nil
	}

	if err := merge(); err != nil {
		return nil, "", err
	}

	for round := 0; round < c.MaxRounds; round++ {
		if len(threads) >= limit {
			break
		}
		prev := len(threads)

		if err := c.inbox.ScrollList(ctx, c.ScrollIncrement); err != nil {
			return threads, inboxID, err
		}
		if round%keyboardAdvanceEvery == 0 {
			if err := c.inbox.PressPageDown(ctx); err != nil {
				return threads, inboxID, err
			}
		}
		if err := sleepCtx(ctx, c.Settle); err != nil {
			return threads, inboxID, err
		}
		if err := merge(); err != nil {
			return threads, inboxID, err
		}

		c.logger.Debug("Discovery round complete",
			zap.Int("round", round+1),
			zap.Int("threads", len(threads)))

		if len(threads) > prev {
			continue
		}

		grown, err := c.recover(ctx, merge, prev, func() int { return len(threads) })
		if err != nil {
			return threads, inboxID, err
		}
		if !grown {
			c.logger.Info("No new threads after recovery attempts, stopping scan",
				zap.Int("threads", len(threads)))
			break
		}
	}

	if inboxID == "" {
		id, err := c.inbox.PageInboxID(ctx)
		if err != nil {
			c.logger.Warn("Could not recover inbox id from page", zap.Error(err))
		} else {
			inboxID = id
		}
	}

	c.logger.Info("Discovery finished",
		zap.Int("threads", len(threads)),
		zap.Int("limit", limit),
		zap.String("inbox_id", inboxID))
	return threads, inboxID, nil
}

// recover runs the escalating ladder when a round found nothing new:
// keyboard jump to end, then forcing the list to its maximum offset. It
// reports whether the set grew.
func (c *Crawler) recover(ctx context.Context, merge func() error, prev int, size func() int) (bool, error) {
	c.logger.Debug("Stuck at existing count, trying keyboard jump to end")
	if err := c.inbox.JumpToEnd(ctx); err != nil {
		return false, err
	}
	if err := sleepCtx(ctx, 2*c.Settle); err != nil {
		return false, err
	}
	if err := merge(); err != nil {
		return false, err
	}
	if size() > prev {
		return true, nil
	}

	c.logger.Debug("Still stuck, forcing list to maximum scroll offset")
	if err := c.inbox.ForceListToMax(ctx); err != nil {
		return false, err
	}
	if err := sleepCtx(ctx, c.Settle); err != nil {
		return false, err
	}
	if err := merge(); err != nil {
		return false, err
	}
	return size() > prev, nil
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
