package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiazeyu1987/hospitalscan/internal/dedup"
	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
	"github.com/jiazeyu1987/hospitalscan/internal/verify"
)

const tenderTableHTML = `<html><body><table>
<tr><td>医院设备采购项目</td><td>2025-03-01</td><td>预算100万元</td></tr>
</table></body></html>`

// stubVerifier returns canned results keyed by URL.
type stubVerifier struct {
	results map[string]verify.Result
}

func (s stubVerifier) Verify(_ context.Context, url string) verify.Result {
	if res, ok := s.results[url]; ok {
		return res
	}
	return verify.Result{URL: url, Errors: []string{"unknown url"}}
}

// stubFetcher returns a fixed body and records calls. When gated, each
// fetch announces itself on started and blocks until release is closed.
type stubFetcher struct {
	body    string
	started chan string
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- url
	}
	if f.release != nil {
		<-f.release
	}
	return f.body, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// panicExtractor blows up on first use.
type panicExtractor struct{}

func (panicExtractor) Candidates(_, _ string) []extract.Candidate {
	panic("extractor exploded")
}

func newManager(t *testing.T, deps task.Deps) *task.Manager {
	t.Helper()

	log := logger.NewNoOp()
	if deps.Verifier == nil {
		deps.Verifier = stubVerifier{}
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(log)
	}
	if deps.Deduper == nil {
		deps.Deduper = dedup.New(dedup.DefaultConfig(), log)
	}

	m, err := task.NewManager(task.Options{PausePollInterval: 5 * time.Millisecond}, deps)
	require.NoError(t, err)
	return m
}

func waitFor(t *testing.T, m *task.Manager, id string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	m := newManager(t, task.Deps{})

	_, err := m.Submit(task.Type("demolition"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task type")
}

func TestSubmitRejectsUnknownConfigKeys(t *testing.T) {
	m := newManager(t, task.Deps{})

	_, err := m.Submit(task.TypeDiscovery, map[string]any{
		"urls":     []string{"http://example.com"},
		"parallel": 9,
	})
	require.Error(t, err)
}

func TestSubmitRejectsMissingTargets(t *testing.T) {
	m := newManager(t, task.Deps{})

	_, err := m.Submit(task.TypeDiscovery, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target urls")
}

func TestSubmitAcceptsTargetSourceFallback(t *testing.T) {
	m := newManager(t, task.Deps{
		Targets: task.StaticTargets{task.TypeDiscovery: {"http://a.example"}},
	})

	id, err := m.Submit(task.TypeDiscovery, nil)
	require.NoError(t, err)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, task.TypeDiscovery, view.Type)
}

func TestLifecycleTransitionGuards(t *testing.T) {
	store := task.NewMemoryStore()
	fetcher := &stubFetcher{
		body:    tenderTableHTML,
		started: make(chan string),
		release: make(chan struct{}),
	}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: store})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://h.example/tenders"},
	})
	require.NoError(t, err)

	// Pending: stop and pause are invalid, start is not.
	require.ErrorIs(t, m.Stop(id), task.ErrInvalidTransition)
	require.ErrorIs(t, m.Pause(id), task.ErrInvalidTransition)
	require.ErrorIs(t, m.Resume(id), task.ErrInvalidTransition)

	require.NoError(t, m.Start(id))
	<-fetcher.started

	// Running: a second start fails and leaves the task running.
	require.ErrorIs(t, m.Start(id), task.ErrAlreadyRunning)
	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "running", view.Status)

	close(fetcher.release)
	waitFor(t, m, id)

	view, err = m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.Equal(t, 100, view.Progress)
}

func TestUnknownTaskOperations(t *testing.T) {
	m := newManager(t, task.Deps{})

	require.ErrorIs(t, m.Start("missing"), task.ErrNotFound)
	require.ErrorIs(t, m.Stop("missing"), task.ErrNotFound)
	_, err := m.Get("missing")
	require.ErrorIs(t, err, task.ErrNotFound)
}

func TestDiscoveryTaskRecordsScans(t *testing.T) {
	store := task.NewMemoryStore()
	m := newManager(t, task.Deps{
		Verifier: stubVerifier{results: map[string]verify.Result{
			"http://good.example": {URL: "http://good.example", Score: 85, IsValid: true},
			"http://bad.example":  {URL: "http://bad.example", Score: 20, Errors: []string{"connect refused"}},
		}},
		Store: store,
	})

	id, err := m.Submit(task.TypeDiscovery, map[string]any{
		"urls": []string{"http://good.example", "http://bad.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, 2, view.Result["targets_scanned"])
	assert.Equal(t, 1, view.Result["valid_sites"])
	assert.Equal(t, 1, view.Result["failed_urls"])

	scans := store.Scans()
	require.Len(t, scans, 2)
	assert.Equal(t, 85, scans[0].Score)
	assert.True(t, scans[0].Valid)
	assert.False(t, scans[1].Valid)
}

func TestTenderMonitorPersistsNewCandidates(t *testing.T) {
	store := task.NewMemoryStore()
	fetcher := &stubFetcher{body: tenderTableHTML}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: store})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://h.example/tenders"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.Equal(t, 1, view.Result["candidates_found"])
	assert.Equal(t, 1, view.Result["new_records"])
	assert.Equal(t, 0, view.Result["duplicates"])

	saved := store.Candidates()
	require.Len(t, saved, 1)
	assert.Equal(t, "医院设备采购项目", saved[0].Title)

	// A second pass over the same source finds only duplicates.
	id2, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://h.example/tenders"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id2))
	waitFor(t, m, id2)

	view, err = m.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Result["new_records"])
	assert.Equal(t, 1, view.Result["duplicates"])
	assert.Len(t, store.Candidates(), 1)
}

func TestTenderMonitorKeywordFilter(t *testing.T) {
	store := task.NewMemoryStore()
	fetcher := &stubFetcher{body: tenderTableHTML}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: store})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls":    []string{"http://h.example/tenders"},
		"keyword": "药品",
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Result["candidates_found"])
	assert.Empty(t, store.Candidates())
}

func TestPauseResumeRoundTrip(t *testing.T) {
	fetcher := &stubFetcher{
		body:    tenderTableHTML,
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: task.NewMemoryStore()})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://a.example", "http://b.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	<-fetcher.started

	require.NoError(t, m.Pause(id))
	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "paused", view.Status)

	// Pausing twice is invalid, as is starting a paused task.
	require.ErrorIs(t, m.Pause(id), task.ErrInvalidTransition)
	require.ErrorIs(t, m.Start(id), task.ErrInvalidTransition)

	require.NoError(t, m.Resume(id))
	view, err = m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "running", view.Status)

	close(fetcher.release)
	<-fetcher.started
	waitFor(t, m, id)

	view, err = m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestStopIsCooperative(t *testing.T) {
	fetcher := &stubFetcher{
		body:    tenderTableHTML,
		started: make(chan string, 3),
		release: make(chan struct{}),
	}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: task.NewMemoryStore()})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://a.example", "http://b.example", "http://c.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	<-fetcher.started

	// Stop lands while the first URL is in flight; the worker notices at
	// its next checkpoint and never fetches the second URL.
	require.NoError(t, m.Stop(id))
	close(fetcher.release)
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.False(t, view.EndedAt.IsZero())
	assert.Nil(t, view.Result)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestWorkerPanicBecomesErrorState(t *testing.T) {
	fetcher := &stubFetcher{body: tenderTableHTML}
	m := newManager(t, task.Deps{
		Extractor: panicExtractor{},
		Fetcher:   fetcher,
		Store:     task.NewMemoryStore(),
	})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://h.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "error", view.Status)
	assert.Equal(t, "extractor exploded", view.Error)
}

func TestHospitalScanSkipsInvalidSites(t *testing.T) {
	store := task.NewMemoryStore()
	fetcher := &stubFetcher{body: tenderTableHTML}
	m := newManager(t, task.Deps{
		Verifier: stubVerifier{results: map[string]verify.Result{
			"http://good.example": {URL: "http://good.example", Score: 80, IsValid: true},
			"http://weak.example": {URL: "http://weak.example", Score: 35},
		}},
		Fetcher: fetcher,
		Store:   store,
	})

	id, err := m.Submit(task.TypeHospitalScan, map[string]any{
		"urls": []string{"http://good.example", "http://weak.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	view, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", view.Status)
	assert.Equal(t, 2, view.Result["targets_scanned"])
	assert.Equal(t, 1, view.Result["valid_sites"])
	assert.Equal(t, 1, view.Result["candidates_found"])

	// Only the valid site was fetched; both got scan-history entries.
	assert.Equal(t, 1, fetcher.callCount())
	require.Len(t, store.Scans(), 2)
	assert.Equal(t, 1, store.Scans()[0].CandidatesFound)
}

func TestListRunningAndRunningCount(t *testing.T) {
	fetcher := &stubFetcher{
		body:    tenderTableHTML,
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	m := newManager(t, task.Deps{Fetcher: fetcher, Store: task.NewMemoryStore()})

	id, err := m.Submit(task.TypeTenderMonitor, map[string]any{
		"urls": []string{"http://a.example"},
	})
	require.NoError(t, err)

	assert.Empty(t, m.ListRunning())
	assert.Equal(t, 0, m.RunningCount(task.TypeTenderMonitor))

	require.NoError(t, m.Start(id))
	<-fetcher.started

	running := m.ListRunning()
	require.Len(t, running, 1)
	assert.Equal(t, id, running[0].ID)
	assert.Equal(t, 1, m.RunningCount(task.TypeTenderMonitor))
	assert.Equal(t, 0, m.RunningCount(task.TypeDiscovery))

	close(fetcher.release)
	waitFor(t, m, id)
	assert.Equal(t, 0, m.RunningCount(task.TypeTenderMonitor))
}

func TestReaperRemovesOldTerminalTasks(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}

	store := task.NewMemoryStore()
	m := newManager(t, task.Deps{
		Verifier: stubVerifier{results: map[string]verify.Result{
			"http://a.example": {URL: "http://a.example", Score: 90, IsValid: true},
		}},
		Store: store,
		Clock: clock,
	})

	id, err := m.Submit(task.TypeDiscovery, map[string]any{
		"urls": []string{"http://a.example"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(id))
	waitFor(t, m, id)

	// Still inside the retention window.
	assert.Equal(t, 0, m.ReapExpired())

	clockMu.Lock()
	current = current.Add(25 * time.Hour)
	clockMu.Unlock()

	assert.Equal(t, 1, m.ReapExpired())
	_, err = m.Get(id)
	require.ErrorIs(t, err, task.ErrNotFound)
}
