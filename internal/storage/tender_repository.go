package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
)

// TenderRepository stores tender candidates and scan history.
type TenderRepository struct {
	db *sqlx.DB
}

// NewTenderRepository creates a repository over an open connection.
func NewTenderRepository(db *sqlx.DB) *TenderRepository {
	return &TenderRepository{db: db}
}

// KnownHashes returns the content hashes already stored for a source. An
// empty sourceURL returns hashes across all sources.
func (r *TenderRepository) KnownHashes(ctx context.Context, sourceURL string) (map[string]struct{}, error) {
	var (
		hashes []string
		err    error
	)

	if sourceURL == "" {
		err = r.db.SelectContext(ctx, &hashes,
			`SELECT content_hash FROM tender_candidates`)
	} else {
		err = r.db.SelectContext(ctx, &hashes,
			`SELECT content_hash FROM tender_candidates WHERE source_url = $1`, sourceURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load known hashes: %w", err)
	}

	known := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		known[hash] = struct{}{}
	}
	return known, nil
}

// SaveCandidates upserts candidates by content hash. Re-saving an existing
// hash refreshes the mutable fields, which is how near-duplicate merges
// that kept a longer text reach the store.
func (r *TenderRepository) SaveCandidates(ctx context.Context, candidates []extract.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	query := `
		INSERT INTO tender_candidates (
			content_hash, source_url, title, content, tender_type, category,
			budget_amount, budget_currency, publish_date, deadline_date,
			source_section, method
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_hash) DO UPDATE SET
			title         = EXCLUDED.title,
			content       = EXCLUDED.content,
			budget_amount = EXCLUDED.budget_amount,
			publish_date  = EXCLUDED.publish_date,
			deadline_date = EXCLUDED.deadline_date
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, c := range candidates {
		var budget any
		if c.HasBudget() {
			budget = c.BudgetAmount
		}

		if _, err := tx.ExecContext(ctx, query,
			c.ContentHash, c.SourceURL, c.Title, c.Content,
			string(c.Type), string(c.Category),
			budget, c.BudgetCurrency,
			c.PublishDate, c.DeadlineDate,
			string(c.SourceSection), c.Method,
		); err != nil {
			return fmt.Errorf("failed to save candidate %s: %w", c.ContentHash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candidates: %w", err)
	}

	return nil
}

// RecordScan appends one scan-history row.
func (r *TenderRepository) RecordScan(ctx context.Context, rec task.ScanRecord) error {
	query := `
		INSERT INTO scan_history (
			task_id, source_url, score, valid, candidates_found, new_records, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(ctx, query,
		rec.TaskID, rec.SourceURL, rec.Score, rec.Valid,
		rec.CandidatesFound, rec.NewRecords, rec.ScannedAt,
	); err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}

	return nil
}

// RecentScans returns the latest scan rows for a source, newest first.
func (r *TenderRepository) RecentScans(ctx context.Context, sourceURL string, limit int) ([]task.ScanRecord, error) {
	var scans []task.ScanRecord

	err := r.db.SelectContext(ctx, &scans, `
		SELECT task_id, source_url, score, valid, candidates_found, new_records, scanned_at
		FROM scan_history
		WHERE source_url = $1
		ORDER BY scanned_at DESC
		LIMIT $2
	`, sourceURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	return scans, nil
}

var _ task.Store = (*TenderRepository)(nil)
