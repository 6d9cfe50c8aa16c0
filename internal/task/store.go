package task

import (
	"context"
	"sync"
	"time"

	"github.com/jiazeyu1987/hospitalscan/internal/extract"
)

// TargetSource supplies target URLs for a task type when the task config
// carries none.
type TargetSource interface {
	Targets(ctx context.Context, taskType Type) ([]string, error)
}

// Fetcher retrieves a page body for extraction.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ScanRecord is one scan-history entry.
type ScanRecord struct {
	TaskID          string    `db:"task_id"`
	SourceURL       string    `db:"source_url"`
	Score           int       `db:"score"`
	Valid           bool      `db:"valid"`
	CandidatesFound int       `db:"candidates_found"`
	NewRecords      int       `db:"new_records"`
	ScannedAt       time.Time `db:"scanned_at"`
}

// Store is the persistence boundary: known hashes in, kept candidates and
// scan history out.
type Store interface {
	KnownHashes(ctx context.Context, sourceURL string) (map[string]struct{}, error)
	SaveCandidates(ctx context.Context, candidates []extract.Candidate) error
	RecordScan(ctx context.Context, rec ScanRecord) error
}

// MemoryStore is an in-process Store used by tests and the one-shot scan
// command. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	hashes     map[string]struct{}
	candidates []extract.Candidate
	scans      []ScanRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]struct{})}
}

// KnownHashes returns every hash stored so far, regardless of source.
func (s *MemoryStore) KnownHashes(_ context.Context, _ string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := make(map[string]struct{}, len(s.hashes))
	for hash := range s.hashes {
		hashes[hash] = struct{}{}
	}
	return hashes, nil
}

// SaveCandidates appends candidates and remembers their hashes.
func (s *MemoryStore) SaveCandidates(_ context.Context, candidates []extract.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candidate := range candidates {
		s.candidates = append(s.candidates, candidate)
		if candidate.ContentHash != "" {
			s.hashes[candidate.ContentHash] = struct{}{}
		}
	}
	return nil
}

// RecordScan appends a scan-history entry.
func (s *MemoryStore) RecordScan(_ context.Context, rec ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, rec)
	return nil
}

// Candidates returns a copy of the stored candidates.
func (s *MemoryStore) Candidates() []extract.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]extract.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Scans returns a copy of the stored scan history.
func (s *MemoryStore) Scans() []ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScanRecord, len(s.scans))
	copy(out, s.scans)
	return out
}

// StaticTargets is a TargetSource serving a fixed URL list per task type.
type StaticTargets map[Type][]string

// Targets returns the configured URLs for the task type.
func (s StaticTargets) Targets(_ context.Context, taskType Type) ([]string, error) {
	return s[taskType], nil
}
