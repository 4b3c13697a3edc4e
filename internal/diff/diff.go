// Package diff reconciles a freshly scraped snapshot against the listings
// already persisted for a company. It is a pure in-memory computation: the
// caller fetches prior state, runs Reconcile, then applies the result through
// the store. Running it twice over the same inputs lands everything in
// Unchanged, which is what makes interrupted runs safe to re-run.
package diff

import (
	"strings"

	"joblens-engine/internal/domain"
)

// Result partitions the union of snapshot and prior-state IDs into four
// disjoint sets. Removed holds the full prior records (the caller needs their
// miss counters); the other three hold snapshot summaries.
type Result struct {
	Added     []domain.ListingSummary
	Updated   []domain.ListingSummary
	Unchanged []domain.ListingSummary
	Removed   []domain.Listing

	// NeedsDetail is the detail-fetch selection: Added and Updated always,
	// plus Unchanged listings whose prior record never got a successful
	// detail fetch. Never Removed.
	NeedsDetail []domain.ListingSummary
}

func (r Result) JobsSeen() int { return len(r.Added) + len(r.Updated) + len(r.Unchanged) }

// IDs returns the partition an ID landed in, for tests and logging.
func (r Result) IDs() (added, updated, unchanged, removed map[string]bool) {
	added = make(map[string]bool, len(r.Added))
	updated = make(map[string]bool, len(r.Updated))
	unchanged = make(map[string]bool, len(r.Unchanged))
	removed = make(map[string]bool, len(r.Removed))
	for _, s := range r.Added {
		added[s.ID] = true
	}
	for _, s := range r.Updated {
		updated[s.ID] = true
	}
	for _, s := range r.Unchanged {
		unchanged[s.ID] = true
	}
	for _, l := range r.Removed {
		removed[l.ID] = true
	}
	return
}

// Reconcile classifies every listing ID present in either the snapshot or the
// prior state. Prior is expected to contain only OPEN listings; a CLOSED
// listing that reappears is therefore absent from prior and classifies as
// Added, and the store's upsert reactivates it.
func Reconcile(snapshot []domain.ListingSummary, prior []domain.Listing) Result {
	// Index both sides by ID. Duplicate IDs within one snapshot happen when
	// a listing shows up under several search queries; first one wins.
	cur := make(map[string]domain.ListingSummary, len(snapshot))
	order := make([]string, 0, len(snapshot))
	for _, s := range snapshot {
		if s.ID == "" {
			continue
		}
		if _, ok := cur[s.ID]; ok {
			continue
		}
		cur[s.ID] = s
		order = append(order, s.ID)
	}

	prev := make(map[string]domain.Listing, len(prior))
	for _, l := range prior {
		prev[l.ID] = l
	}

	// Classify. Every ID lands in exactly one partition.
	var res Result
	for _, id := range order {
		s := cur[id]
		p, known := prev[id]
		switch {
		case !known:
			res.Added = append(res.Added, s)
		case listFieldsEqual(s, p):
			res.Unchanged = append(res.Unchanged, s)
		default:
			res.Updated = append(res.Updated, s)
		}
	}
	for _, l := range prior {
		if _, ok := cur[l.ID]; !ok {
			res.Removed = append(res.Removed, l)
		}
	}

	// Detail-fetch selection. This is the cost property: fetches scale with
	// the delta, not the board size. Unchanged listings re-enter only when a
	// previous run persisted them without details (failed or skipped fetch).
	res.NeedsDetail = append(res.NeedsDetail, res.Added...)
	res.NeedsDetail = append(res.NeedsDetail, res.Updated...)
	for _, s := range res.Unchanged {
		if !prev[s.ID].DetailsScraped {
			res.NeedsDetail = append(res.NeedsDetail, s)
		}
	}

	return res
}

// listFieldsEqual compares only the fields a list page provides.
func listFieldsEqual(s domain.ListingSummary, p domain.Listing) bool {
	return clean(s.Title) == clean(p.Title) &&
		clean(s.Location) == clean(p.Location) &&
		clean(s.URL) == clean(p.URL)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
