package surface

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/models"
	"go.uber.org/zap"
)

const (
	metaInboxURL = "https://business.facebook.com/latest/inbox/all"
	loginWait    = 5 * time.Minute
)

// ChromeOptions selects how the Chromium session is obtained. Attach
// connects to an already-authenticated browser over its devtools port;
// otherwise a persistent profile is launched and the operator logs in once.
type ChromeOptions struct {
	Attach      bool
	Port        int
	Headless    bool
	ProfilePath string
}

// ChromeInbox drives the Business Suite inbox tab over the Chrome DevTools
// Protocol. It is the production implementation of Inbox.
type ChromeInbox struct {
	tab     context.Context
	cancels []context.CancelFunc
	logger  *zap.Logger

	lastHistoryTop float64
	hasHistoryTop  bool
}

// Connect attaches to or launches a Chromium session and binds to the
// Business Suite tab. Failures here are startup-fatal for the pipeline.
func Connect(parent context.Context, opts ChromeOptions, logger *zap.Logger) (*ChromeInbox, error) {
	if opts.Attach {
		return connectOverCDP(parent, opts, logger)
	}
	return launchPersistent(parent, opts, logger)
}

func connectOverCDP(parent context.Context, opts ChromeOptions, logger *zap.Logger) (*ChromeInbox, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(parent,
		fmt.Sprintf("http://127.0.0.1:%d", opts.Port))
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: no browser on port %d: %v", ErrNoSession, opts.Port, err)
	}

	var targetID target.ID
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, "business.facebook.com") {
			targetID = t.TargetID
			break
		}
	}
	if targetID == "" {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: no Business Suite tab open", ErrNoInboxSurface)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(targetID))

	inbox := &ChromeInbox{
		tab:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelBrowser, cancelAlloc},
		logger:  logger,
	}

	var loc string
	if err := chromedp.Run(tabCtx, chromedp.Location(&loc)); err != nil {
		inbox.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	logger.Info("Attached to Business Suite tab", zap.String("url", loc))
	return inbox, nil
}

func launchPersistent(parent context.Context, opts ChromeOptions, logger *zap.Logger) (*ChromeInbox, error) {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(opts.ProfilePath),
		chromedp.WindowSize(1440, 900),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if opts.Headless {
		execOpts = append(execOpts, chromedp.Headless)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, execOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	inbox := &ChromeInbox{
		tab:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		logger:  logger,
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(metaInboxURL)); err != nil {
		inbox.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	time.Sleep(3 * time.Second)

	var loc string
	if err := chromedp.Run(tabCtx, chromedp.Location(&loc)); err != nil {
		inbox.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if strings.Contains(loc, "login") {
		logger.Info("Waiting for operator login", zap.Duration("timeout", loginWait))
		if !inbox.waitForInboxURL(parent) {
			inbox.Close()
			return nil, fmt.Errorf("%w: login not completed", ErrNoInboxSurface)
		}
	}
	return inbox, nil
}

func (c *ChromeInbox) waitForInboxURL(ctx context.Context) bool {
	deadline := time.Now().Add(loginWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(2 * time.Second):
		}
		var loc string
		if err := chromedp.Run(c.tab, chromedp.Location(&loc)); err != nil {
			continue
		}
		if strings.Contains(loc, "/inbox/") {
			return true
		}
	}
	return false
}

func (c *ChromeInbox) eval(ctx context.Context, js string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(c.tab, chromedp.Evaluate(js, out))
}

func (c *ChromeInbox) VisibleThreads(ctx context.Context) ([]models.Thread, error) {
	var raw []struct {
		ThreadID   string `json:"threadID"`
		ThreadType string `json:"threadType"`
		InboxID    string `json:"inboxID"`
	}
	if err := c.eval(ctx, visibleThreadsJS, &raw); err != nil {
		return nil, fmt.Errorf("error resolving visible threads: %w", err)
	}
	threads := make([]models.Thread, 0, len(raw))
	for _, r := range raw {
		threads = append(threads, models.NewThread(r.ThreadID, models.ThreadKind(r.ThreadType), r.InboxID))
	}
	return threads, nil
}

func (c *ChromeInbox) PageInboxID(ctx context.Context) (string, error) {
	var id string
	if err := c.eval(ctx, pageInboxIDJS, &id); err != nil {
		return "", fmt.Errorf("error reading page inbox id: %w", err)
	}
	return id, nil
}

func (c *ChromeInbox) ScrollList(ctx context.Context, pixels int) error {
	var usedContainer bool
	if err := c.eval(ctx, fmt.Sprintf(scrollListJS, pixels), &usedContainer); err != nil {
		return fmt.Errorf("error scrolling thread list: %w", err)
	}
	if !usedContainer {
		c.logger.Debug("Thread list container not found, used whole-surface scroll")
	}
	return nil
}

func (c *ChromeInbox) PressPageDown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(c.tab, chromedp.KeyEvent(kb.PageDown))
}

func (c *ChromeInbox) JumpToEnd(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(c.tab, chromedp.KeyEvent(kb.End))
}

func (c *ChromeInbox) ForceListToMax(ctx context.Context) error {
	var ok bool
	if err := c.eval(ctx, forceListToMaxJS, &ok); err != nil {
		return fmt.Errorf("error forcing list to max offset: %w", err)
	}
	return nil
}

func (c *ChromeInbox) SelectThread(ctx context.Context, threadID string) (bool, error) {
	c.resetHistoryTracking()
	var clicked bool
	if err := c.eval(ctx, fmt.Sprintf(selectThreadJS, threadID), &clicked); err != nil {
		return false, fmt.Errorf("error selecting thread: %w", err)
	}
	return clicked, nil
}

func (c *ChromeInbox) NavigateThread(ctx context.Context, thread models.Thread, inboxID string) error {
	c.resetHistoryTracking()
	if thread.InboxID != "" {
		inboxID = thread.InboxID
	}
	q := url.Values{}
	q.Set("asset_id", inboxID)
	q.Set("selected_item_id", thread.ID)
	q.Set("mailbox_id", inboxID)
	q.Set("thread_type", string(thread.Kind))
	dest := metaInboxURL + "?" + q.Encode()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(c.tab, chromedp.Navigate(dest)); err != nil {
		return fmt.Errorf("error navigating to thread: %w", err)
	}
	return nil
}

func (c *ChromeInbox) WaitForAttribution(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		var present bool
		if err := c.eval(ctx, attributionPresentJS, &present); err == nil && present {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (c *ChromeInbox) HistoryScrollStep(ctx context.Context) (HistoryStep, error) {
	var res struct {
		Found   bool     `json:"found"`
		Top     float64  `json:"top"`
		Markers []string `json:"markers"`
	}
	if err := c.eval(ctx, historyStepJS, &res); err != nil {
		return HistoryStep{}, fmt.Errorf("error scrolling message history: %w", err)
	}
	if !res.Found {
		return HistoryStep{}, nil
	}

	progressed := !c.hasHistoryTop || res.Top != c.lastHistoryTop
	c.lastHistoryTop = res.Top
	c.hasHistoryTop = true

	return HistoryStep{
		Progressed:    progressed,
		OldestVisible: oldestDayMarker(res.Markers),
	}, nil
}

func (c *ChromeInbox) resetHistoryTracking() {
	c.hasHistoryTop = false
	c.lastHistoryTop = 0
}

func (c *ChromeInbox) Snapshot(ctx context.Context) (*extract.Snapshot, error) {
	var raw []struct {
		Text        string           `json:"text"`
		ChildLevels int              `json:"childLevels"`
		Chain       []map[string]any `json:"chain"`
		Ancestors   []struct {
			Siblings []string `json:"siblings"`
		} `json:"ancestors"`
	}
	if err := c.eval(ctx, snapshotJS, &raw); err != nil {
		return nil, fmt.Errorf("error capturing thread snapshot: %w", err)
	}

	snap := &extract.Snapshot{}
	for _, r := range raw {
		node := extract.Node{
			Text:        r.Text,
			ChildLevels: r.ChildLevels,
		}
		for _, props := range r.Chain {
			node.StateChain = append(node.StateChain, extract.Props(props))
		}
		for _, a := range r.Ancestors {
			node.Ancestors = append(node.Ancestors, extract.Ancestor{SiblingTexts: a.Siblings})
		}
		snap.Nodes = append(snap.Nodes, node)
	}
	return snap, nil
}

func (c *ChromeInbox) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	return nil
}
