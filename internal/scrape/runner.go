package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"joblens-engine/internal/config"
	"joblens-engine/internal/diff"
	"joblens-engine/internal/domain"
	"joblens-engine/internal/events"
	"joblens-engine/internal/scrape/util"
	"joblens-engine/internal/store"
)

// Options is the scrape tuning snapshot, derived from config.
type Options struct {
	DetailWorkers int
	DelayMin      time.Duration
	DelayMax      time.Duration
	MaxRetries    int
	RetryMinWait  time.Duration
	RetryMaxWait  time.Duration
	RunTimeout    time.Duration
	MissThreshold int
	BatchSize     int
	FetchDetails  bool // -no-details turns this off
}

func OptionsFromConfig(cfg config.Config) Options {
	s := cfg.Scrape
	return Options{
		DetailWorkers: s.DetailWorkers,
		DelayMin:      time.Duration(s.DelayMinMS) * time.Millisecond,
		DelayMax:      time.Duration(s.DelayMaxMS) * time.Millisecond,
		MaxRetries:    s.MaxRetries,
		RetryMinWait:  time.Duration(s.RetryMinWaitS) * time.Second,
		RetryMaxWait:  time.Duration(s.RetryMaxWaitS) * time.Second,
		RunTimeout:    time.Duration(s.RunTimeoutMin) * time.Minute,
		MissThreshold: s.MissThreshold,
		BatchSize:     s.BatchSize,
		FetchDetails:  true,
	}
}

// Runner drives scrape runs: list fetch, reconcile, detail fetches, persist,
// audit. One Runner serves all companies; per-company locks serialize runs.
type Runner struct {
	Store *store.Store
	Hub   *events.Hub
	Opts  Options

	locks *companyLocks

	mu     sync.Mutex
	status map[string]Status
}

// Status is the per-company view served by /scrape/status.
type Status struct {
	Company    string `json:"company"`
	Running    bool   `json:"running"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	LastOkAt   string `json:"last_ok_at,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	LastRunID  string `json:"last_run_id,omitempty"`
	LastNew    int    `json:"last_new"`
	LastClosed int    `json:"last_closed"`
}

func NewRunner(st *store.Store, hub *events.Hub, lockDir string, opts Options) *Runner {
	return &Runner{
		Store:  st,
		Hub:    hub,
		Opts:   opts,
		locks:  newCompanyLocks(lockDir),
		status: make(map[string]Status),
	}
}

// RunCompany executes one scrape run for a company against the given source.
// The returned ScrapeRun is always finalized and persisted, also on failure;
// only the initial lock or run-insert failing returns before that.
func (r *Runner) RunCompany(ctx context.Context, src Source, company Company, mode domain.RunMode) (domain.ScrapeRun, error) {
	if err := r.locks.acquire(company.Name); err != nil {
		return domain.ScrapeRun{}, err
	}
	defer r.locks.release(company.Name)

	run := domain.NewScrapeRun(company.Name, src.Name(), mode)
	if err := r.Store.InsertRun(ctx, run); err != nil {
		return domain.ScrapeRun{}, fmt.Errorf("record run start: %w", err)
	}

	r.setRunning(company.Name, run.RunID)
	r.Hub.Publish(events.MakeEvent("", events.TypeScrapeStarted, map[string]any{
		"run_id": run.RunID, "company": company.Name, "mode": mode,
	}))

	rctx := ctx
	var cancel context.CancelFunc
	if r.Opts.RunTimeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, r.Opts.RunTimeout)
		defer cancel()
	}

	runErr := r.execute(rctx, src, company, mode, &run)

	now := time.Now().UTC()
	run.CompletedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
		if run.ErrorCount == 0 {
			run.ErrorCount = 1
		}
	}
	// Finalize with the parent ctx: the run timeout must not stop the audit
	// row from being written.
	if err := r.Store.FinalizeRun(ctx, run); err != nil {
		log.Printf("[scrape:%s] finalize run %s: %v", company.Name, run.RunID, err)
	}

	r.setFinished(company.Name, run, runErr)
	r.Hub.Publish(events.MakeEvent("", events.TypeScrapeFinished, run))

	log.Printf("[scrape:%s] run=%s mode=%s seen=%d new=%d updated=%d closed=%d details=%d errors=%d err=%v",
		company.Name, run.RunID, mode, run.JobsSeen, run.NewJobs, run.UpdatedJobs,
		run.ClosedJobs, run.DetailsFetched, run.ErrorCount, runErr)

	return run, runErr
}

// execute is the run body; counts accumulate on run even when it errors out.
func (r *Runner) execute(ctx context.Context, src Source, company Company, mode domain.RunMode, run *domain.ScrapeRun) error {
	// Phase 1: cheap list snapshot.
	snapshot, err := src.List(ctx, company)
	if err != nil {
		return fmt.Errorf("list %s: %w", company.Name, err)
	}

	// Phase 2: reconcile against prior state, read fresh every run.
	prior, err := r.Store.OpenListings(ctx, company.Name)
	if err != nil {
		return fmt.Errorf("load prior state: %w", err)
	}
	res := diff.Reconcile(snapshot, prior)
	run.JobsSeen = res.JobsSeen()
	run.NewJobs = len(res.Added)
	run.UpdatedJobs = len(res.Updated)

	log.Printf("[scrape:%s] diff added=%d updated=%d unchanged=%d removed=%d",
		company.Name, len(res.Added), len(res.Updated), len(res.Unchanged), len(res.Removed))

	// Phase 3: detail fetches for the delta only. Full mode re-hydrates the
	// whole snapshot instead.
	targets := res.NeedsDetail
	if mode == domain.ModeFull {
		targets = append(append(append([]domain.ListingSummary{}, res.Added...), res.Updated...), res.Unchanged...)
	}
	details := map[string]domain.Details{}
	if r.Opts.FetchDetails && len(targets) > 0 {
		var fetched int
		details, fetched = r.fetchDetails(ctx, src, company, targets, run)
		run.DetailsFetched = fetched
	}

	// Phase 4: persist. A write failure is fatal for this run; partial
	// progress is fine, the next diff self-corrects.
	upserts := make([]domain.Listing, 0, len(res.Added)+len(res.Updated))
	for _, part := range [][]domain.ListingSummary{res.Added, res.Updated} {
		for _, s := range part {
			upserts = append(upserts, r.buildListing(src, company, s, details))
		}
	}

	seenIDs := make([]string, 0, len(res.Unchanged))
	for _, s := range res.Unchanged {
		if d, ok := details[s.ID]; ok && !d.Empty() {
			// an unchanged listing whose missing details arrived now
			upserts = append(upserts, r.buildListing(src, company, s, details))
			continue
		}
		seenIDs = append(seenIDs, s.ID)
	}

	missingIDs := make([]string, 0, len(res.Removed))
	for _, l := range res.Removed {
		missingIDs = append(missingIDs, l.ID)
	}

	threshold := r.Opts.MissThreshold
	if mode == domain.ModeFull {
		// Absence from a full snapshot is definitive.
		threshold = 1
	}

	closed, err := r.Store.ApplyDiff(ctx, store.ApplyArgs{
		Company:       company.Name,
		Now:           time.Now().UTC(),
		Upserts:       upserts,
		SeenIDs:       seenIDs,
		MissingIDs:    missingIDs,
		MissThreshold: threshold,
		BatchSize:     r.Opts.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("persist diff: %w", err)
	}
	run.ClosedJobs = closed

	// Phase 5 is the run record itself, written by the caller.
	for _, s := range res.Added {
		r.Hub.Publish(events.MakeEvent("", events.TypeListingAdded, map[string]any{
			"company": company.Name, "id": s.ID, "title": s.Title,
		}))
	}
	if closed > 0 {
		r.Hub.Publish(events.MakeEvent("", events.TypeListingClosed, map[string]any{
			"company": company.Name, "count": closed,
		}))
	}
	return nil
}

// fetchDetails hydrates targets with bounded concurrency, a randomized gap
// between requests and retries with backoff. One listing failing only bumps
// the error counter; the listing keeps its list-page fields.
func (r *Runner) fetchDetails(ctx context.Context, src Source, company Company, targets []domain.ListingSummary, run *domain.ScrapeRun) (map[string]domain.Details, int) {
	var (
		mu      sync.Mutex
		details = make(map[string]domain.Details, len(targets))
		fetched int
		errs    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Opts.DetailWorkers))

	for _, s := range targets {
		s := s
		g.Go(func() error {
			if err := sleepBeforeFetch(gctx, r.Opts); err != nil {
				return nil // run timeout; stop quietly
			}

			var (
				d        domain.Details
				parseErr error
			)
			err := retryFetch(gctx, r.Opts, func() error {
				var ferr error
				d, ferr = src.Detail(gctx, company, s)
				if errors.Is(ferr, ErrParse) {
					// not transient; retrying reparses the same payload
					parseErr = ferr
					return nil
				}
				return ferr
			})
			if err == nil && parseErr != nil {
				err = parseErr
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				log.Printf("[scrape:%s] detail fetch id=%s url=%s err=%v", company.Name, s.ID, s.URL, err)
				return nil
			}
			details[s.ID] = d
			fetched++
			return nil
		})
	}
	_ = g.Wait()

	run.ErrorCount += errs
	return details, fetched
}

func (r *Runner) buildListing(src Source, company Company, s domain.ListingSummary, details map[string]domain.Details) domain.Listing {
	l := domain.Listing{
		ID:       s.ID,
		Company:  company.Name,
		Source:   src.Name(),
		Title:    s.Title,
		Location: s.Location,
		URL:      s.URL,
		Status:   domain.StatusOpen,
		PostedOn: s.PostedOn,
	}
	if d, ok := details[s.ID]; ok {
		l.Details = d
		l.DetailsScraped = true
	}
	return l
}

// RunAll runs every target sequentially. Companies already mid-run are
// skipped, other failures are logged and the loop continues.
func (r *Runner) RunAll(ctx context.Context, targets []Target, mode domain.RunMode) {
	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.RunCompany(ctx, t.Source, t.Company, mode); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				log.Printf("[scrape] skip company=%q: run in progress", t.Company.Name)
				continue
			}
			log.Printf("[scrape] company=%q failed: %v", t.Company.Name, err)
		}
	}
}

// Statuses returns a snapshot for /scrape/status.
func (r *Runner) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.status))
	for _, st := range r.status {
		out = append(out, st)
	}
	return out
}

func (r *Runner) setRunning(company, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status[company]
	st.Company = company
	st.Running = true
	st.LastRunAt = time.Now().UTC().Format(time.RFC3339)
	st.LastRunID = runID
	r.status[company] = st
}

func (r *Runner) setFinished(company string, run domain.ScrapeRun, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status[company]
	st.Running = false
	st.LastNew = run.NewJobs
	st.LastClosed = run.ClosedJobs
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastOkAt = time.Now().UTC().Format(time.RFC3339)
	}
	r.status[company] = st
}

func sleepBeforeFetch(ctx context.Context, o Options) error {
	if o.DelayMax <= 0 {
		return nil
	}
	return util.SleepJitter(ctx, o.DelayMin, o.DelayMax)
}

func retryFetch(ctx context.Context, o Options, fn func() error) error {
	return util.Retry(ctx, o.MaxRetries, o.RetryMinWait, o.RetryMaxWait, fn)
}
