package store

import (
	"context"
	"testing"
	"time"

	"joblens-engine/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testListing(company, id, title string) domain.Listing {
	return domain.Listing{
		ID:             id,
		Company:        company,
		Source:         "google",
		Title:          title,
		Location:       "Mountain View, CA, USA",
		URL:            "https://example.com/jobs/results/" + id,
		Status:         domain.StatusOpen,
		DetailsScraped: true,
		Details:        domain.Details{Description: "desc of " + id},
	}
}

func apply(t *testing.T, s *Store, args ApplyArgs) int {
	t.Helper()
	if args.Now.IsZero() {
		args.Now = time.Now().UTC()
	}
	closed, err := s.ApplyDiff(context.Background(), args)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	return closed
}

func TestApplyDiff_InsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{
		Company: "google",
		Upserts: []domain.Listing{testListing("google", "j1", "Software Engineer III")},
	})

	got, err := s.GetListing(ctx, "google", "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusOpen {
		t.Errorf("expected OPEN, got %s", got.Status)
	}
	if got.Details.Description != "desc of j1" {
		t.Errorf("details round-trip failed: %+v", got.Details)
	}
	if !got.DetailsScraped {
		t.Error("expected details_scraped to persist")
	}
	if got.FirstSeenAt.IsZero() || got.LastSeenAt.IsZero() {
		t.Error("expected seen timestamps to be set")
	}
}

func TestApplyDiff_CloseAtThresholdOne(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})

	closed := apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j1"}, MissThreshold: 1})
	if closed != 1 {
		t.Fatalf("expected 1 closed, got %d", closed)
	}

	got, _ := s.GetListing(ctx, "google", "j1")
	if got.Status != domain.StatusClosed {
		t.Errorf("expected CLOSED, got %s", got.Status)
	}
	if got.ClosedOn == nil {
		t.Error("expected closed_on to be set")
	}
}

func TestApplyDiff_MissThresholdTwo(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})

	// First miss: counter goes to 1, below threshold, stays OPEN.
	closed := apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j1"}, MissThreshold: 2})
	if closed != 0 {
		t.Fatalf("expected 0 closed after first miss, got %d", closed)
	}
	got, _ := s.GetListing(ctx, "google", "j1")
	if got.Status != domain.StatusOpen || got.ConsecutiveMisses != 1 {
		t.Fatalf("after first miss: status=%s misses=%d", got.Status, got.ConsecutiveMisses)
	}

	// Second miss closes it.
	closed = apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j1"}, MissThreshold: 2})
	if closed != 1 {
		t.Fatalf("expected 1 closed after second miss, got %d", closed)
	}
}

func TestApplyDiff_SightingResetsMisses(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})
	apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j1"}, MissThreshold: 3})

	got, _ := s.GetListing(ctx, "google", "j1")
	if got.ConsecutiveMisses != 1 {
		t.Fatalf("expected 1 miss, got %d", got.ConsecutiveMisses)
	}

	apply(t, s, ApplyArgs{Company: "google", SeenIDs: []string{"j1"}})
	got, _ = s.GetListing(ctx, "google", "j1")
	if got.ConsecutiveMisses != 0 {
		t.Errorf("expected miss counter reset, got %d", got.ConsecutiveMisses)
	}
}

func TestApplyDiff_ReactivationPreservesFirstSeen(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	apply(t, s, ApplyArgs{Company: "google", Now: t0, Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})
	apply(t, s, ApplyArgs{Company: "google", Now: t0.Add(24 * time.Hour), MissingIDs: []string{"j1"}, MissThreshold: 1})

	// Reappears two days later.
	t2 := t0.Add(48 * time.Hour)
	apply(t, s, ApplyArgs{Company: "google", Now: t2, Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})

	got, err := s.GetListing(ctx, "google", "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusOpen {
		t.Errorf("expected reactivated OPEN, got %s", got.Status)
	}
	if got.ClosedOn != nil {
		t.Error("expected closed_on cleared on reactivation")
	}
	if !got.FirstSeenAt.Equal(t0) {
		t.Errorf("first_seen_at changed: want %v got %v", t0, got.FirstSeenAt)
	}
	if !got.LastSeenAt.Equal(t2) {
		t.Errorf("last_seen_at not refreshed: want %v got %v", t2, got.LastSeenAt)
	}
}

func TestApplyDiff_ScopedToCompany(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{testListing("google", "j1", "SWE")}})
	other := testListing("ashby-co", "j1", "SWE")
	other.Company = "ashby-co"
	apply(t, s, ApplyArgs{Company: "ashby-co", Upserts: []domain.Listing{other}})

	// Closing google/j1 must not touch ashby-co/j1 despite the shared ID.
	apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j1"}, MissThreshold: 1})

	got, _ := s.GetListing(ctx, "ashby-co", "j1")
	if got.Status != domain.StatusOpen {
		t.Errorf("cross-company close: got %s", got.Status)
	}
}

func TestOpenListings_ExcludesClosed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{
		testListing("google", "j1", "SWE"),
		testListing("google", "j2", "SRE"),
	}})
	apply(t, s, ApplyArgs{Company: "google", MissingIDs: []string{"j2"}, MissThreshold: 1})

	openOnes, err := s.OpenListings(ctx, "google")
	if err != nil {
		t.Fatal(err)
	}
	if len(openOnes) != 1 || openOnes[0].ID != "j1" {
		t.Fatalf("expected only j1 open, got %+v", openOnes)
	}
}

func TestListListings_Filters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	apply(t, s, ApplyArgs{Company: "google", Upserts: []domain.Listing{
		testListing("google", "j1", "Software Engineer"),
		testListing("google", "j2", "Site Reliability Engineer"),
	}})
	apply(t, s, ApplyArgs{Company: "google", SeenIDs: []string{"j1"}, MissingIDs: []string{"j2"}, MissThreshold: 1})

	rows, err := s.ListListings(ctx, ListOpts{Company: "google", Status: "CLOSED"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "j2" {
		t.Fatalf("status filter: got %+v", rows)
	}

	rows, err = s.ListListings(ctx, ListOpts{Query: "reliability"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "j2" {
		t.Fatalf("query filter: got %+v", rows)
	}

	n, err := s.CountListings(ctx, ListOpts{Company: "google"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count: want 2 got %d", n)
	}

	// the count honors the same title filter as the listing query
	n, err = s.CountListings(ctx, ListOpts{Query: "reliability"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("filtered count: want 1 got %d", n)
	}
}

func TestRuns_InsertFinalizeList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := domain.NewScrapeRun("google", "google", domain.ModeIncremental)
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.JobsSeen = 42
	run.NewJobs = 3
	run.ClosedJobs = 1
	run.DetailsFetched = 3
	run.ErrorCount = 1
	run.Error = "one detail fetch failed"
	if err := s.FinalizeRun(ctx, run); err != nil {
		t.Fatalf("finalize run: %v", err)
	}

	// Finalize is once-only.
	run.JobsSeen = 999
	if err := s.FinalizeRun(ctx, run); err != nil {
		t.Fatalf("re-finalize: %v", err)
	}

	runs, err := s.ListRuns(ctx, "google", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.JobsSeen != 42 {
		t.Errorf("finalized row mutated: jobs_seen=%d", got.JobsSeen)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
	if got.Error != "one detail fetch failed" {
		t.Errorf("error round-trip: %q", got.Error)
	}
}
