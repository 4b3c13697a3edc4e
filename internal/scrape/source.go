package scrape

import (
	"context"
	"errors"
	"fmt"

	"joblens-engine/internal/domain"
)

// Source is one listing provider (Google Careers or an ATS board).
// List returns the cheap list-page snapshot for a company; Detail fetches
// the expensive per-listing fields. Sources whose list payload already
// carries the details may answer Detail from memory.
type Source interface {
	Name() string
	List(ctx context.Context, company Company) ([]domain.ListingSummary, error)
	Detail(ctx context.Context, company Company, s domain.ListingSummary) (domain.Details, error)
}

// Company identifies one board within a source.
type Company struct {
	Slug string
	Name string
}

// Error kinds. FetchError is transient (retried with backoff), ParseError
// skips the listing for this run, persistence failures abort the run.
var (
	ErrFetch = errors.New("fetch error")
	ErrParse = errors.New("parse error")
)

// FetchErrorf builds a retryable fetch error; for use by source packages.
func FetchErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFetch, fmt.Sprintf(format, args...))
}

// ParseErrorf builds a non-retryable parse error; for use by source packages.
func ParseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
