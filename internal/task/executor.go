package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jiazeyu1987/hospitalscan/internal/extract"
)

const progressScale = 100

// outcome accumulates a worker's counters across targets.
type outcome struct {
	targetsScanned  int
	validSites      int
	candidatesFound int
	newRecords      int
	duplicates      int
	failedURLs      int
}

// asResult converts the counters into the task's result map.
func (o outcome) asResult() map[string]any {
	return map[string]any{
		"targets_scanned":  o.targetsScanned,
		"valid_sites":      o.validSites,
		"candidates_found": o.candidatesFound,
		"new_records":      o.newRecords,
		"duplicates":       o.duplicates,
		"failed_urls":      o.failedURLs,
	}
}

// run executes a task on its own goroutine. Panics are converted to the
// error state with the panic message preserved; nothing escapes past the
// worker boundary.
func (m *Manager) run(id string, taskType Type, cfg Config, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Errorf("%v", r))
		}
	}()

	ctx := context.Background()

	targets, err := m.resolveTargets(ctx, taskType, cfg)
	if err != nil {
		m.fail(id, err)
		return
	}
	if len(targets) == 0 {
		m.fail(id, errNoTargets)
		return
	}

	var out outcome
	for i, url := range targets {
		if !m.checkpoint(id) {
			m.logger.Info("task cancelled at checkpoint",
				"task_id", id, "processed", i, "targets", len(targets))
			return
		}

		m.processTarget(ctx, id, taskType, cfg, url, &out)
		m.setProgress(id, (i+1)*progressScale/len(targets))
	}

	m.complete(id, out)
}

// resolveTargets returns the task's URL list: the config's explicit URLs,
// falling back to the target source.
func (m *Manager) resolveTargets(ctx context.Context, taskType Type, cfg Config) ([]string, error) {
	if urls := targetURLs(cfg); len(urls) > 0 {
		return urls, nil
	}
	if m.deps.Targets == nil {
		return nil, errNoTargets
	}

	urls, err := m.deps.Targets.Targets(ctx, taskType)
	if err != nil {
		return nil, fmt.Errorf("resolve targets for %s: %w", taskType, err)
	}
	return urls, nil
}

// checkpoint polls the task's status between units of work. It blocks while
// the task is paused and reports whether the worker should proceed.
func (m *Manager) checkpoint(id string) bool {
	for {
		switch m.statusOf(id) {
		case StatusRunning:
			return true
		case StatusPaused:
			time.Sleep(m.opts.PausePollInterval)
		default:
			return false
		}
	}
}

// processTarget handles one URL. Failures are counted and logged, never
// fatal to the task.
func (m *Manager) processTarget(ctx context.Context, id string, taskType Type, cfg Config, url string, out *outcome) {
	out.targetsScanned++

	switch taskType {
	case TypeDiscovery:
		m.discoverSite(ctx, id, url, out)
	case TypeTenderMonitor:
		keyword := ""
		if c, ok := cfg.(TenderMonitorConfig); ok {
			keyword = c.Keyword
		}
		m.monitorSource(ctx, id, url, keyword, out)
	case TypeHospitalScan:
		minScore := 0
		if c, ok := cfg.(HospitalScanConfig); ok {
			minScore = c.MinScore
		}
		m.scanHospital(ctx, id, url, minScore, out)
	}
}

// discoverSite verifies one candidate site and records the scan.
func (m *Manager) discoverSite(ctx context.Context, id, url string, out *outcome) {
	res := m.deps.Verifier.Verify(ctx, url)
	if res.IsValid {
		out.validSites++
	}
	if len(res.Errors) > 0 {
		out.failedURLs++
	}

	m.recordScan(ctx, ScanRecord{
		TaskID:    id,
		SourceURL: url,
		Score:     res.Score,
		Valid:     res.IsValid,
		ScannedAt: m.now(),
	})
}

// monitorSource fetches one tender source, extracts candidates, filters by
// keyword when configured, deduplicates against the store, and persists
// what survives.
func (m *Manager) monitorSource(ctx context.Context, id, url, keyword string, out *outcome) {
	if m.deps.Fetcher == nil {
		m.logger.Warn("no fetcher configured, skipping source", "task_id", id, "url", url)
		out.failedURLs++
		return
	}

	body, err := m.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		m.logger.Warn("fetch failed", "task_id", id, "url", url, "error", err.Error())
		out.failedURLs++
		return
	}

	candidates := m.deps.Extractor.Candidates(body, url)
	if keyword != "" {
		candidates = filterByKeyword(candidates, keyword)
	}
	out.candidatesFound += len(candidates)

	known, err := m.deps.Store.KnownHashes(ctx, url)
	if err != nil {
		m.logger.Warn("loading known hashes failed", "task_id", id, "url", url, "error", err.Error())
		known = nil
	}

	kept, stats := m.deps.Deduper.Run(known, candidates)
	out.newRecords += stats.UniqueCount
	out.duplicates += stats.ExactDuplicates + stats.NearDuplicatesMerged

	if err := m.deps.Store.SaveCandidates(ctx, kept); err != nil {
		m.logger.Error("saving candidates failed", "task_id", id, "url", url, "error", err.Error())
		out.failedURLs++
	}
}

// scanHospital verifies a hospital site first and extracts from it only
// when the site clears the score bar.
func (m *Manager) scanHospital(ctx context.Context, id, url string, minScore int, out *outcome) {
	res := m.deps.Verifier.Verify(ctx, url)

	passed := res.IsValid
	if minScore > 0 {
		passed = res.Score >= minScore
	}

	rec := ScanRecord{
		TaskID:    id,
		SourceURL: url,
		Score:     res.Score,
		Valid:     res.IsValid,
		ScannedAt: m.now(),
	}

	if !passed {
		if len(res.Errors) > 0 {
			out.failedURLs++
		}
		m.recordScan(ctx, rec)
		return
	}

	out.validSites++

	before := *out
	m.monitorSource(ctx, id, url, "", out)
	rec.CandidatesFound = out.candidatesFound - before.candidatesFound
	rec.NewRecords = out.newRecords - before.newRecords

	m.recordScan(ctx, rec)
}

// recordScan writes a scan-history entry, logging failures.
func (m *Manager) recordScan(ctx context.Context, rec ScanRecord) {
	if err := m.deps.Store.RecordScan(ctx, rec); err != nil {
		m.logger.Error("recording scan failed",
			"task_id", rec.TaskID, "url", rec.SourceURL, "error", err.Error())
	}
}

// complete marks a task finished. If the task was stopped externally after
// the worker's last checkpoint the stop wins and the record is left alone.
// A pause that lands after the last unit of work completes anyway; there is
// nothing left to resume.
func (m *Manager) complete(id string, out outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok || (rec.status != StatusRunning && rec.status != StatusPaused) {
		return
	}

	rec.status = StatusStopped
	rec.progress = progressScale
	rec.result = out.asResult()
	rec.endedAt = m.now()

	m.logger.Info("task completed",
		"task_id", id,
		"targets", out.targetsScanned,
		"candidates", out.candidatesFound,
		"new", out.newRecords,
	)
}

// fail moves a task to the error state, preserving the message verbatim.
func (m *Manager) fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return
	}

	rec.status = StatusError
	rec.errDetail = err.Error()
	rec.endedAt = m.now()

	m.logger.Error("task failed", "task_id", id, "error", err.Error())
}

// filterByKeyword keeps candidates whose title contains the keyword.
func filterByKeyword(candidates []extract.Candidate, keyword string) []extract.Candidate {
	kept := candidates[:0:0]
	for _, candidate := range candidates {
		if strings.Contains(candidate.Title, keyword) {
			kept = append(kept, candidate)
		}
	}
	return kept
}
