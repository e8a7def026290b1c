// Package surface abstracts the external messaging surface behind a
// capability interface. The crawler and orchestrator only ever see Inbox;
// the chromedp implementation hides the introspection mechanics (walking
// the host's internal component state to recover logical identifiers).
package surface

import (
	"context"
	"errors"
	"time"

	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/models"
)

var (
	// ErrNoSession means the automation host could not be reached at all.
	// Startup-fatal: the process exits non-zero.
	ErrNoSession = errors.New("automation host unreachable")

	// ErrNoInboxSurface means the host session has no inbox tab to drive.
	// Also startup-fatal.
	ErrNoInboxSurface = errors.New("inbox surface not found")
)

// HistoryStep reports one backward scroll of the message pane.
// OldestVisible is the earliest day marker currently parseable from the
// pane, zero when none was recognized.
type HistoryStep struct {
	Progressed    bool
	OldestVisible time.Time
}

// Inbox is the capability the sync engine needs from the messaging surface.
type Inbox interface {
	// VisibleThreads resolves the logical identifiers of the currently
	// rendered thread rows. Off-screen rows do not exist in the
	// virtualized list and cannot be returned.
	VisibleThreads(ctx context.Context) ([]models.Thread, error)

	// PageInboxID recovers the mailbox identifier from the page itself,
	// used when no rendered row carried one.
	PageInboxID(ctx context.Context) (string, error)

	// ScrollList advances the thread list by the given pixel increment,
	// degrading to whole-surface scrolling when no container is found.
	ScrollList(ctx context.Context, pixels int) error

	// PressPageDown issues a keyboard page advance, which defeats
	// lazy-render heuristics that ignore programmatic scrolls.
	PressPageDown(ctx context.Context) error

	// JumpToEnd issues a keyboard jump to the end of the list.
	JumpToEnd(ctx context.Context) error

	// ForceListToMax sets the list's scroll offset to its maximum.
	ForceListToMax(ctx context.Context) error

	// SelectThread clicks the rendered row for threadID. It reports false
	// without error when the row is not currently rendered.
	SelectThread(ctx context.Context, threadID string) (bool, error)

	// NavigateThread loads the thread by direct URL construction, the
	// fallback when in-surface selection failed.
	NavigateThread(ctx context.Context, thread models.Thread, inboxID string) error

	// WaitForAttribution polls until at least one attribution marker is
	// rendered or the timeout elapses. A timeout is not an error.
	WaitForAttribution(ctx context.Context, timeout time.Duration) bool

	// HistoryScrollStep scrolls the message pane one step toward its
	// beginning.
	HistoryScrollStep(ctx context.Context) (HistoryStep, error)

	// Snapshot captures the rendered thread pane for extraction.
	Snapshot(ctx context.Context) (*extract.Snapshot, error)

	Close() error
}
