package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"joblens-engine/internal/domain"
)

// ApplyArgs carries one reconciled diff into the database. Upserts holds the
// added and updated listings (detail-enriched where fetches succeeded),
// SeenIDs the unchanged ones, MissingIDs the removed ones.
type ApplyArgs struct {
	Company    string
	Now        time.Time
	Upserts    []domain.Listing
	SeenIDs    []string
	MissingIDs []string

	// MissThreshold is how many consecutive runs a listing may be absent
	// before it is closed. Full runs pass 1 (absence from a full snapshot is
	// definitive); incremental runs tolerate query rotation with a higher
	// threshold.
	MissThreshold int

	// BatchSize chunks upserts into separate transactions so a late write
	// failure doesn't discard earlier progress; the next run's diff
	// self-corrects. <=0 means one batch.
	BatchSize int
}

// ApplyDiff persists a reconciled diff: upsert added/updated (reactivating
// CLOSED rows and preserving first_seen_at), refresh last_seen and reset the
// miss counter for unchanged, increment misses for missing and close those at
// threshold. Returns the number of listings closed.
func (s *Store) ApplyDiff(ctx context.Context, args ApplyArgs) (closed int, err error) {
	if args.MissThreshold <= 0 {
		args.MissThreshold = 1
	}
	now := formatTime(args.Now)

	for _, batch := range chunk(args.Upserts, args.BatchSize) {
		if err := s.upsertBatch(ctx, batch, now); err != nil {
			return 0, fmt.Errorf("upsert batch: %w", err)
		}
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if len(args.SeenIDs) > 0 {
		q, a, err := s.in(`UPDATE listings SET last_seen_at = ?, consecutive_misses = 0
WHERE company = ? AND id IN (?)`, now, args.Company, args.SeenIDs)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, q, a...); err != nil {
			return 0, fmt.Errorf("refresh unchanged: %w", err)
		}
	}

	if len(args.MissingIDs) > 0 {
		q, a, err := s.in(`UPDATE listings SET consecutive_misses = consecutive_misses + 1
WHERE company = ? AND id IN (?) AND status = 'OPEN'`, args.Company, args.MissingIDs)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, q, a...); err != nil {
			return 0, fmt.Errorf("increment misses: %w", err)
		}

		q, a, err = s.in(`UPDATE listings SET status = 'CLOSED', closed_on = ?
WHERE company = ? AND id IN (?) AND status = 'OPEN' AND consecutive_misses >= ?`,
			now, args.Company, args.MissingIDs, args.MissThreshold)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, q, a...)
		if err != nil {
			return 0, fmt.Errorf("close missing: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			closed = int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return closed, nil
}

func (s *Store) upsertBatch(ctx context.Context, batch []domain.Listing, now string) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// ON CONFLICT reactivates a closed row and refreshes the list fields;
	// first_seen_at stays what it was on first discovery.
	q := s.rebind(`INSERT INTO listings (
  id, company, source, title, location, url, status, details,
  posted_on, first_seen_at, last_seen_at, closed_on, consecutive_misses, details_scraped
) VALUES (?, ?, ?, ?, ?, ?, 'OPEN', ?, ?, ?, ?, NULL, 0, ?)
ON CONFLICT (company, id) DO UPDATE SET
  title = EXCLUDED.title,
  location = EXCLUDED.location,
  url = EXCLUDED.url,
  source = EXCLUDED.source,
  details = EXCLUDED.details,
  posted_on = EXCLUDED.posted_on,
  status = 'OPEN',
  closed_on = NULL,
  last_seen_at = EXCLUDED.last_seen_at,
  consecutive_misses = 0,
  details_scraped = EXCLUDED.details_scraped`)

	for _, l := range batch {
		detailsJSON, err := json.Marshal(l.Details)
		if err != nil {
			return fmt.Errorf("marshal details for %s: %w", l.ID, err)
		}
		scraped := 0
		if l.DetailsScraped {
			scraped = 1
		}
		if _, err := tx.ExecContext(ctx, q,
			l.ID, l.Company, l.Source, l.Title, l.Location, l.URL,
			string(detailsJSON), formatTimePtr(l.PostedOn), now, now, scraped,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

func chunk(xs []domain.Listing, size int) [][]domain.Listing {
	if size <= 0 || len(xs) <= size {
		if len(xs) == 0 {
			return nil
		}
		return [][]domain.Listing{xs}
	}
	var out [][]domain.Listing
	for size < len(xs) {
		out = append(out, xs[:size])
		xs = xs[size:]
	}
	return append(out, xs)
}
