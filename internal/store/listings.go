package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"joblens-engine/internal/domain"
)

var ErrNotFound = errors.New("not found")

// listingRow is the scan shape; TEXT timestamps and a 0/1 flag keep both
// drivers happy.
type listingRow struct {
	ID                string         `db:"id"`
	Company           string         `db:"company"`
	Source            string         `db:"source"`
	Title             string         `db:"title"`
	Location          string         `db:"location"`
	URL               string         `db:"url"`
	Status            string         `db:"status"`
	Details           string         `db:"details"`
	PostedOn          sql.NullString `db:"posted_on"`
	FirstSeenAt       string         `db:"first_seen_at"`
	LastSeenAt        string         `db:"last_seen_at"`
	ClosedOn          sql.NullString `db:"closed_on"`
	ConsecutiveMisses int            `db:"consecutive_misses"`
	DetailsScraped    int            `db:"details_scraped"`
}

const listingCols = `id, company, source, title, location, url, status, details,
posted_on, first_seen_at, last_seen_at, closed_on, consecutive_misses, details_scraped`

func (r listingRow) toDomain() domain.Listing {
	l := domain.Listing{
		ID:                r.ID,
		Company:           r.Company,
		Source:            r.Source,
		Title:             r.Title,
		Location:          r.Location,
		URL:               r.URL,
		Status:            domain.Status(r.Status),
		FirstSeenAt:       parseTime(r.FirstSeenAt),
		LastSeenAt:        parseTime(r.LastSeenAt),
		ConsecutiveMisses: r.ConsecutiveMisses,
		DetailsScraped:    r.DetailsScraped != 0,
	}
	_ = json.Unmarshal([]byte(r.Details), &l.Details)
	if r.PostedOn.Valid && r.PostedOn.String != "" {
		t := parseTime(r.PostedOn.String)
		l.PostedOn = &t
	}
	if r.ClosedOn.Valid && r.ClosedOn.String != "" {
		t := parseTime(r.ClosedOn.String)
		l.ClosedOn = &t
	}
	return l
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// OpenListings returns the prior state the reconciler diffs against: every
// OPEN listing for the company.
func (s *Store) OpenListings(ctx context.Context, company string) ([]domain.Listing, error) {
	var rows []listingRow
	q := s.rebind(`SELECT ` + listingCols + ` FROM listings WHERE company = ? AND status = 'OPEN'`)
	if err := s.DB.SelectContext(ctx, &rows, q, company); err != nil {
		return nil, fmt.Errorf("select open listings: %w", err)
	}
	out := make([]domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetListing(ctx context.Context, company, id string) (domain.Listing, error) {
	var r listingRow
	q := s.rebind(`SELECT ` + listingCols + ` FROM listings WHERE company = ? AND id = ?`)
	err := s.DB.GetContext(ctx, &r, q, company, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, err
	}
	return r.toDomain(), nil
}

// FindListing looks an ID up without knowing the company.
func (s *Store) FindListing(ctx context.Context, id string) (domain.Listing, error) {
	var r listingRow
	q := s.rebind(`SELECT ` + listingCols + ` FROM listings WHERE id = ? LIMIT 1`)
	err := s.DB.GetContext(ctx, &r, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, err
	}
	return r.toDomain(), nil
}

type ListOpts struct {
	Company string
	Status  string // OPEN | CLOSED | "" (all)
	Query   string // substring match on title
	Sort    string // last_seen | first_seen | title | company
	Limit   int
	Offset  int
}

func (s *Store) ListListings(ctx context.Context, opts ListOpts) ([]domain.Listing, error) {
	if opts.Limit <= 0 || opts.Limit > 2000 {
		opts.Limit = 200
	}

	// whitelist sort columns
	sortCol := map[string]string{
		"last_seen":  "last_seen_at DESC",
		"first_seen": "first_seen_at DESC",
		"title":      "title ASC",
		"company":    "company ASC, title ASC",
	}[opts.Sort]
	if sortCol == "" {
		sortCol = "last_seen_at DESC"
	}

	where, args := listingFilter(opts)
	args = append(args, opts.Limit, opts.Offset)

	q := s.rebind(fmt.Sprintf(
		`SELECT %s FROM listings %s ORDER BY %s LIMIT ? OFFSET ?`,
		listingCols, where, sortCol,
	))

	var rows []listingRow
	if err := s.DB.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	out := make([]domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CountListings counts under the same filters ListListings applies, so a
// paginated response can report the true total for its query.
func (s *Store) CountListings(ctx context.Context, opts ListOpts) (int, error) {
	where, args := listingFilter(opts)
	var n int
	q := s.rebind(`SELECT COUNT(*) FROM listings ` + where)
	if err := s.DB.GetContext(ctx, &n, q, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// listingFilter builds the WHERE clause ListListings and CountListings share.
func listingFilter(opts ListOpts) (string, []any) {
	where := "WHERE 1=1"
	args := []any{}
	if opts.Company != "" {
		where += " AND company = ?"
		args = append(args, opts.Company)
	}
	if opts.Status != "" {
		where += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.Query != "" {
		where += " AND lower(title) LIKE ?"
		args = append(args, "%"+strings.ToLower(opts.Query)+"%")
	}
	return where, args
}

// in expands an IN clause for the active driver.
func (s *Store) in(query string, args ...any) (string, []any, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.rebind(q), expanded, nil
}
