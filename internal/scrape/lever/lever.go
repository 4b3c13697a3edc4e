package lever

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

// Scraper reads the public Lever postings API. The list payload already
// carries the description, so Detail answers from a per-run cache instead
// of refetching.
type Scraper struct {
	hc      *http.Client
	limiter *util.HostLimiter

	mu    sync.Mutex
	cache map[string]domain.Details // company|id
}

func New(limiter *util.HostLimiter) *Scraper {
	return &Scraper{
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		cache:   make(map[string]domain.Details),
	}
}

func (s *Scraper) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	ApplyURL   string `json:"applyUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location string `json:"location"`
	} `json:"categories"`
	Description string `json:"description"` // html
	Lists       []struct {
		Text    string `json:"text"`
		Content string `json:"content"` // html list body
	} `json:"lists"`
}

func (s *Scraper) List(ctx context.Context, co scrape.Company) ([]domain.ListingSummary, error) {
	apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", co.Slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "JobLens/1.0 (+local)")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
			return nil, err
		}
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, scrape.FetchErrorf("lever get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, scrape.FetchErrorf("lever status %d", res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return nil, scrape.ParseErrorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, scrape.ParseErrorf("lever decode: %v", err)
	}

	out := make([]domain.ListingSummary, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" || p.HostedURL == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		sum := domain.ListingSummary{
			ID:       p.ID,
			Title:    strings.TrimSpace(p.Text),
			Location: util.NormalizeLocation(p.Categories.Location),
			URL:      p.HostedURL,
		}
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			sum.PostedOn = &t
		}
		out = append(out, sum)
		s.put(co, p)
	}
	return out, nil
}

func (s *Scraper) Detail(_ context.Context, co scrape.Company, sum domain.ListingSummary) (domain.Details, error) {
	s.mu.Lock()
	d, ok := s.cache[cacheKey(co, sum.ID)]
	s.mu.Unlock()
	if !ok || d.Empty() {
		return domain.Details{}, scrape.ParseErrorf("lever posting %s not in list payload", sum.ID)
	}
	return d, nil
}

func (s *Scraper) put(co scrape.Company, p leverPosting) {
	var desc strings.Builder
	desc.WriteString(p.Description)
	for _, l := range p.Lists {
		if l.Text != "" {
			desc.WriteString("\n" + l.Text + "\n")
		}
		desc.WriteString(l.Content)
	}
	d := domain.Details{
		Description: desc.String(),
		ApplyURL:    p.ApplyURL,
	}
	if d.ApplyURL == "" {
		d.ApplyURL = p.HostedURL + "/apply"
	}
	s.mu.Lock()
	s.cache[cacheKey(co, p.ID)] = d
	s.mu.Unlock()
}

func cacheKey(co scrape.Company, id string) string {
	return co.Slug + "|" + id
}
