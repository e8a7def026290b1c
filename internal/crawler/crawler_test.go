package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/models"
	"github.com/vschool/agentsync/internal/surface"
	"go.uber.org/zap"
)

// fakeInbox plays back scripted batches of visible threads, one batch per
// snapshot, repeating the last batch once the script runs out.
type fakeInbox struct {
	batches [][]models.Thread
	scrapes int
	calls   []string
	inboxID string
}

func th(id string) models.Thread {
	return models.NewThread(id, models.ThreadKindFBMessage, "page_1")
}

func (f *fakeInbox) VisibleThreads(ctx context.Context) ([]models.Thread, error) {
	idx := f.scrapes
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	f.scrapes++
	if idx < 0 {
		return nil, nil
	}
	return f.batches[idx], nil
}

func (f *fakeInbox) PageInboxID(ctx context.Context) (string, error) { return f.inboxID, nil }

func (f *fakeInbox) ScrollList(ctx context.Context, px int) error {
	f.calls = append(f.calls, "scroll")
	return nil
}

func (f *fakeInbox) PressPageDown(ctx context.Context) error {
	f.calls = append(f.calls, "pagedown")
	return nil
}

func (f *fakeInbox) JumpToEnd(ctx context.Context) error {
	f.calls = append(f.calls, "end")
	return nil
}

func (f *fakeInbox) ForceListToMax(ctx context.Context) error {
	f.calls = append(f.calls, "forcemax")
	return nil
}

func (f *fakeInbox) SelectThread(ctx context.Context, id string) (bool, error) { return false, nil }

func (f *fakeInbox) NavigateThread(ctx context.Context, t models.Thread, inboxID string) error {
	return nil
}

func (f *fakeInbox) WaitForAttribution(ctx context.Context, timeout time.Duration) bool { return true }

func (f *fakeInbox) HistoryScrollStep(ctx context.Context) (surface.HistoryStep, error) {
	return surface.HistoryStep{}, nil
}

func (f *fakeInbox) Snapshot(ctx context.Context) (*extract.Snapshot, error) {
	return &extract.Snapshot{}, nil
}

func (f *fakeInbox) Close() error { return nil }

func newCrawler(inbox surface.Inbox) *Crawler {
	c := New(inbox, zap.NewNop())
	c.Settle = 0
	return c
}

func TestDiscoverAccumulatesWithoutDuplicates(t *testing.T) {
	inbox := &fakeInbox{batches: [][]models.Thread{
		{th("t1"), th("t2")},
		{th("t2"), th("t3")},
		{th("t3"), th("t4")},
		{th("t3"), th("t4")}, // no growth from here on
	}}

	threads, inboxID, err := newCrawler(inbox).Discover(context.Background(), 9999)
	require.NoError(t, err)

	var ids []string
	for _, tr := range threads {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, ids, "insertion order, no duplicates")
	assert.Equal(t, "page_1", inboxID)
}

func TestDiscoverStopsAtLimit(t *testing.T) {
	inbox := &fakeInbox{batches: [][]models.Thread{
		{th("t1")},
		{th("t2")},
		{th("t3")},
		{th("t4")},
	}}

	threads, _, err := newCrawler(inbox).Discover(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestRecoveryLadderOrdering(t *testing.T) {
	// One productive round, then the list stops growing: the crawler must
	// try End, then force-max, then give up.
	inbox := &fakeInbox{batches: [][]models.Thread{
		{th("t1")},
		{th("t1")},
	}}

	threads, _, err := newCrawler(inbox).Discover(context.Background(), 9999)
	require.NoError(t, err)
	assert.Len(t, threads, 1)

	assert.Equal(t, []string{"scroll", "pagedown", "end", "forcemax"}, inbox.calls)
}

func TestRecoveryCanResumeDiscovery(t *testing.T) {
	inbox := &fakeInbox{batches: [][]models.Thread{
		{th("t1")}, // initial
		{th("t1")}, // round 1 scroll: stuck
		{th("t1")}, // recovery 1 (End): still stuck
		{th("t1"), th("t2")}, // recovery 2 (force max): grows
		{th("t1"), th("t2"), th("t3")}, // next round resumes
		{th("t1"), th("t2"), th("t3")}, // stuck again
	}}

	threads, _, err := newCrawler(inbox).Discover(context.Background(), 9999)
	require.NoError(t, err)
	assert.Len(t, threads, 3)
}

func TestDiscoverRoundCap(t *testing.T) {
	// Every snapshot yields a fresh id, so only the cap stops the loop.
	var batches [][]models.Thread
	var cur []models.Thread
	for i := 0; i < 40; i++ {
		cur = append(cur, th(string(rune('a'+i%26))+string(rune('0'+i/26))))
		batches = append(batches, append([]models.Thread(nil), cur...))
	}
	inbox := &fakeInbox{batches: batches}

	c := newCrawler(inbox)
	c.MaxRounds = 5
	threads, _, err := c.Discover(context.Background(), 9999)
	require.NoError(t, err)
	assert.Len(t, threads, 6, "initial snapshot plus five rounds")
}

func TestMonotonicGrowthAcrossRounds(t *testing.T) {
	inbox := &fakeInbox{batches: [][]models.Thread{
		{th("t3"), th("t1")},
		{th("t2")},
		{}, // surface transiently renders nothing
		{th("t1")},
	}}

	threads, _, err := newCrawler(inbox).Discover(context.Background(), 9999)
	require.NoError(t, err)
	assert.Len(t, threads, 3, "an empty snapshot never shrinks the set")
}
