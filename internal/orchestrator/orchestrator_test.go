package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/gateway"
	"github.com/vschool/agentsync/internal/ledger"
	"github.com/vschool/agentsync/internal/models"
	"github.com/vschool/agentsync/internal/surface"
	"go.uber.org/zap"
)

type fakeDiscoverer struct {
	threads []models.Thread
	inboxID string
	err     error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, limit int) ([]models.Thread, string, error) {
	return f.threads, f.inboxID, f.err
}

// fakeSurface serves per-thread snapshots and records navigation.
type fakeSurface struct {
	snapshots map[string]*extract.Snapshot
	selectOK  map[string]bool
	current   string
	navigated []string
	selected  []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		snapshots: map[string]*extract.Snapshot{},
		selectOK:  map[string]bool{},
	}
}

func (f *fakeSurface) VisibleThreads(ctx context.Context) ([]models.Thread, error) { return nil, nil }
func (f *fakeSurface) PageInboxID(ctx context.Context) (string, error)             { return "", nil }
func (f *fakeSurface) ScrollList(ctx context.Context, px int) error                { return nil }
func (f *fakeSurface) PressPageDown(ctx context.Context) error                     { return nil }
func (f *fakeSurface) JumpToEnd(ctx context.Context) error                         { return nil }
func (f *fakeSurface) ForceListToMax(ctx context.Context) error                    { return nil }

func (f *fakeSurface) SelectThread(ctx context.Context, id string) (bool, error) {
	f.selected = append(f.selected, id)
	ok, known := f.selectOK[id]
	if !known {
		ok = true
	}
	if ok {
		f.current = id
	}
	return ok, nil
}

func (f *fakeSurface) NavigateThread(ctx context.Context, t models.Thread, inboxID string) error {
	f.navigated = append(f.navigated, t.ID)
	f.current = t.ID
	return nil
}

func (f *fakeSurface) WaitForAttribution(ctx context.Context, timeout time.Duration) bool {
	return true
}

func (f *fakeSurface) HistoryScrollStep(ctx context.Context) (surface.HistoryStep, error) {
	return surface.HistoryStep{Progressed: false}, nil
}

func (f *fakeSurface) Snapshot(ctx context.Context) (*extract.Snapshot, error) {
	snap, ok := f.snapshots[f.current]
	if !ok {
		return &extract.Snapshot{}, nil
	}
	return snap, nil
}

func (f *fakeSurface) Close() error { return nil }

type gatewayCall struct {
	conversationID string
	senders        []models.SenderTuple
}

type fakeGateway struct {
	calls   []gatewayCall
	results map[string]gateway.Result
	err     error
}

func (f *fakeGateway) SubmitSenders(ctx context.Context, id string, senders []models.SenderTuple) (gateway.Result, error) {
	f.calls = append(f.calls, gatewayCall{conversationID: id, senders: senders})
	if f.err != nil {
		return gateway.Result{}, f.err
	}
	if r, ok := f.results[id]; ok {
		return r, nil
	}
	return gateway.Result{Success: true, Updated: 1}, nil
}

func attributionSnapshot(name, messageID, text string) *extract.Snapshot {
	return &extract.Snapshot{Nodes: []extract.Node{{
		Text: "Sent by " + name,
		StateChain: []extract.Props{
			{"messageId": messageID, "text": text},
		},
	}}}
}

func newOrchestrator(t *testing.T, disc *fakeDiscoverer, inbox *fakeSurface,
	store ledger.Store, gw *fakeGateway, opts Options) *Orchestrator {
	t.Helper()
	o := New(inbox, disc, store, extract.New(zap.NewNop()), gw, NopPacer{}, opts, zap.NewNop())
	o.ReadinessTimeout = 0
	o.HistoryStepWait = 0
	o.EmptyRetryWait = 0
	return o
}

func TestRunScenario(t *testing.T) {
	// Empty ledger; discovery finds T1 and T2; T1 yields one strong-signal
	// tuple, T2 stays empty even after the retry.
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", "page_1"),
		models.NewThread("T2", "", "page_1"),
	}, inboxID: "page_1"}

	inbox := newFakeSurface()
	inbox.snapshots["T1"] = attributionSnapshot("Nueng", "m1", "hi")

	store := ledger.NewMemoryStore()
	gw := &fakeGateway{results: map[string]gateway.Result{
		"T1": {Success: true, Updated: 1},
	}}

	o := newOrchestrator(t, disc, inbox, store, gw, Options{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.MessagesUpdated)

	require.Len(t, gw.calls, 1, "only T1 is delivered")
	assert.Equal(t, "T1", gw.calls[0].conversationID)
	require.Len(t, gw.calls[0].senders, 1)
	assert.Equal(t, "Nueng", gw.calls[0].senders[0].Name)

	entries, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, entries, "T1")
	assert.Equal(t, models.SyncSuccess, entries["T1"].Status)
	assert.Equal(t, []string{"Nueng"}, entries["T1"].Agents)
	assert.NotContains(t, entries, "T2", "legitimately empty threads get no ledger entry")
}

func TestSecondRunIsIdempotent(t *testing.T) {
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", "page_1"),
	}}
	inbox := newFakeSurface()
	inbox.snapshots["T1"] = attributionSnapshot("Nueng", "m1", "hi")
	store := ledger.NewMemoryStore()
	gw := &fakeGateway{}

	o := newOrchestrator(t, disc, inbox, store, gw, Options{})

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, gw.calls, 1, "no new delivery calls on the second run")
	assert.Equal(t, 0, summary.Attempted, "success entries leave the eligible set empty")
}

func TestFailedEntriesStayEligible(t *testing.T) {
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", "page_1"),
	}}
	inbox := newFakeSurface()
	inbox.snapshots["T1"] = attributionSnapshot("Nueng", "m1", "hi")
	store := ledger.NewMemoryStore()

	// First run: ingestion API rejects the delivery.
	gw := &fakeGateway{results: map[string]gateway.Result{
		"T1": {Success: false},
	}}
	o := newOrchestrator(t, disc, inbox, store, gw, Options{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Succeeded)

	entries, _ := store.Load()
	require.Contains(t, entries, "T1")
	assert.Equal(t, models.SyncFailed, entries["T1"].Status,
		"rejected delivery is distinguishable from successful-but-empty")

	// Second run: the API recovers and the thread is retried.
	gw.results["T1"] = gateway.Result{Success: true, Updated: 2}
	summary, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.MessagesUpdated)

	entries, _ = store.Load()
	assert.Equal(t, models.SyncSuccess, entries["T1"].Status)
}

func TestTransportErrorRecordsFailedAndContinues(t *testing.T) {
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", "page_1"),
		models.NewThread("T2", "", "page_1"),
	}}
	inbox := newFakeSurface()
	inbox.snapshots["T1"] = attributionSnapshot("Nueng", "m1", "hi")
	inbox.snapshots["T2"] = attributionSnapshot("Song", "m2", "yo")
	store := ledger.NewMemoryStore()
	gw := &fakeGateway{err: errors.New("connection refused")}

	o := newOrchestrator(t, disc, inbox, store, gw, Options{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err, "a single thread's failure never aborts the run")

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Len(t, gw.calls, 2, "the second thread is still attempted")

	entries, _ := store.Load()
	assert.Equal(t, models.SyncFailed, entries["T1"].Status)
	assert.Equal(t, models.SyncFailed, entries["T2"].Status)
}

func TestURLNavigationFallback(t *testing.T) {
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", "page_1"),
	}}
	inbox := newFakeSurface()
	inbox.selectOK["T1"] = false
	inbox.snapshots["T1"] = attributionSnapshot("Nueng", "m1", "hi")
	store := ledger.NewMemoryStore()
	gw := &fakeGateway{}

	o := newOrchestrator(t, disc, inbox, store, gw, Options{})
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"T1"}, inbox.selected)
	assert.Equal(t, []string{"T1"}, inbox.navigated, "URL navigation only after selection fails")
}

func TestLimitCapsEligibleSet(t *testing.T) {
	disc := &fakeDiscoverer{threads: []models.Thread{
		models.NewThread("T1", "", ""),
		models.NewThread("T2", "", ""),
		models.NewThread("T3", "", ""),
	}}
	inbox := newFakeSurface()
	for _, id := range []string{"T1", "T2", "T3"} {
		inbox.snapshots[id] = attributionSnapshot("Nueng", "m-"+id, "hi")
	}
	store := ledger.NewMemoryStore()
	gw := &fakeGateway{}

	o := newOrchestrator(t, disc, inbox, store, gw, Options{Limit: 2})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempted)
}

func TestDiscoveryFailureAbortsRun(t *testing.T) {
	disc := &fakeDiscoverer{err: errors.New("browser went away")}
	o := newOrchestrator(t, disc, newFakeSurface(), ledger.NewMemoryStore(), &fakeGateway{}, Options{})

	_, err := o.Run(context.Background())
	assert.Error(t, err)
}

func TestAcquireRunLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "sync.lock")

	release, err := AcquireRunLock(path)
	require.NoError(t, err)

	_, err = AcquireRunLock(path)
	assert.Error(t, err, "second instance is refused while the lock is held")

	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	release2, err := AcquireRunLock(path)
	require.NoError(t, err)
	release2()
}
