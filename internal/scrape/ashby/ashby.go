package ashby

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/scrape/util"
)

// Scraper reads the public Ashby job-board API. The board payload includes
// the posting description, so Detail is served from a per-run cache.
type Scraper struct {
	hc      *http.Client
	limiter *util.HostLimiter

	mu    sync.Mutex
	cache map[string]domain.Details
}

func New(limiter *util.HostLimiter) *Scraper {
	return &Scraper{
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		cache:   make(map[string]domain.Details),
	}
}

func (s *Scraper) Name() string { return "ashby" }

type ashbyPosting struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Location       string `json:"location"`
	PublishedAt    string `json:"publishedAt"`
	JobURL         string `json:"jobUrl"`
	ApplyURL       string `json:"applyUrl"`
	DescriptionRaw string `json:"descriptionHtml"`
	Compensation   struct {
		ScrapeableSummary string `json:"compensationTierSummary"`
	} `json:"compensation"`
}

type ashbyBoard struct {
	Jobs []ashbyPosting `json:"jobs"`
}

func (s *Scraper) List(ctx context.Context, co scrape.Company) ([]domain.ListingSummary, error) {
	u := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s?includeCompensation=true", co.Slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "JobLens/1.0 (+local)")
	req.Header.Set("Accept", "application/json")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, u); err != nil {
			return nil, err
		}
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, scrape.FetchErrorf("ashby get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, scrape.FetchErrorf("ashby status %d", res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return nil, scrape.ParseErrorf("ashby status %d", res.StatusCode)
	}

	var board ashbyBoard
	if err := json.NewDecoder(res.Body).Decode(&board); err != nil {
		return nil, scrape.ParseErrorf("ashby decode: %v", err)
	}

	out := make([]domain.ListingSummary, 0, len(board.Jobs))
	for _, p := range board.Jobs {
		if p.ID == "" || strings.TrimSpace(p.Title) == "" {
			continue
		}
		sum := domain.ListingSummary{
			ID:       p.ID,
			Title:    strings.TrimSpace(p.Title),
			Location: util.NormalizeLocation(p.Location),
			URL:      p.JobURL,
		}
		if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
			t = t.UTC()
			sum.PostedOn = &t
		}
		out = append(out, sum)

		s.mu.Lock()
		s.cache[co.Slug+"|"+p.ID] = domain.Details{
			Description: p.DescriptionRaw,
			Salary:      util.CleanText(p.Compensation.ScrapeableSummary),
			ApplyURL:    p.ApplyURL,
		}
		s.mu.Unlock()
	}
	return out, nil
}

func (s *Scraper) Detail(_ context.Context, co scrape.Company, sum domain.ListingSummary) (domain.Details, error) {
	s.mu.Lock()
	d, ok := s.cache[co.Slug+"|"+sum.ID]
	s.mu.Unlock()
	if !ok || d.Empty() {
		return domain.Details{}, scrape.ParseErrorf("ashby posting %s not in board payload", sum.ID)
	}
	return d, nil
}
