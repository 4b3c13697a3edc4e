package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/scrape/util"
)

// Scraper reads the public Greenhouse boards API:
// the jobs index for the list snapshot, the per-job endpoint for content.
type Scraper struct {
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(limiter *util.HostLimiter) *Scraper {
	return &Scraper{
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string { return "greenhouse" }

type ghJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Content string `json:"content"` // html, per-job endpoint only
}

type ghJobsResponse struct {
	Jobs []ghJob `json:"jobs"`
}

func (s *Scraper) List(ctx context.Context, co scrape.Company) ([]domain.ListingSummary, error) {
	u := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs", co.Slug)

	var resp ghJobsResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ListingSummary, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.ID == 0 || j.AbsoluteURL == "" {
			continue
		}
		out = append(out, domain.ListingSummary{
			ID:       strconv.FormatInt(j.ID, 10),
			Title:    util.CleanText(j.Title),
			Location: util.NormalizeLocation(j.Location.Name),
			URL:      j.AbsoluteURL,
		})
	}
	return out, nil
}

func (s *Scraper) Detail(ctx context.Context, co scrape.Company, sum domain.ListingSummary) (domain.Details, error) {
	u := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs/%s", co.Slug, sum.ID)

	var j ghJob
	if err := s.getJSON(ctx, u, &j); err != nil {
		return domain.Details{}, err
	}

	d := domain.Details{
		// content arrives HTML-escaped
		Description: html.UnescapeString(j.Content),
		ApplyURL:    j.AbsoluteURL,
	}
	if d.Empty() {
		return domain.Details{}, scrape.ParseErrorf("greenhouse job %s has no content", sum.ID)
	}
	return d, nil
}

func (s *Scraper) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "JobLens/1.0 (+local)")
	req.Header.Set("Accept", "application/json")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, u); err != nil {
			return err
		}
	}

	res, err := s.hc.Do(req)
	if err != nil {
		return scrape.FetchErrorf("greenhouse get %s: %v", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return scrape.FetchErrorf("greenhouse get %s: status %d", u, res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return scrape.ParseErrorf("greenhouse get %s: status %d", u, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return scrape.ParseErrorf("greenhouse decode %s: %v", u, err)
	}
	return nil
}
