package workday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/scrape/util"
)

// Scraper talks to Workday's cxs JSON endpoints. The company slug is the
// full job board URL; tenant and site are derived from it.
type Scraper struct {
	hc      *http.Client
	limiter *util.HostLimiter

	mu          sync.Mutex
	blockedHost map[string]bool
}

var ErrBlocked = errors.New("workday host blocked")

func New(limiter *util.HostLimiter) *Scraper {
	jar, _ := cookiejar.New(nil)
	return &Scraper{
		hc:          &http.Client{Jar: jar, Timeout: 30 * time.Second},
		limiter:     limiter,
		blockedHost: map[string]bool{},
	}
}

func (s *Scraper) Name() string { return "workday" }

type board struct {
	Scheme string
	Host   string
	Tenant string
	Site   string
}

type wdRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type wdPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOnDate  string   `json:"postedOnDate"`
	BulletFields  []string `json:"bulletFields"`
}

type wdResponse struct {
	Total       int         `json:"total"`
	JobPostings []wdPosting `json:"jobPostings"`
}

type wdJobInfo struct {
	JobPostingInfo struct {
		ID             string `json:"id"`
		Title          string `json:"title"`
		JobDescription string `json:"jobDescription"` // html
		ExternalURL    string `json:"externalUrl"`
	} `json:"jobPostingInfo"`
}

func (s *Scraper) List(ctx context.Context, co scrape.Company) ([]domain.ListingSummary, error) {
	b, err := parseBoardURL(co.Slug)
	if err != nil {
		return nil, scrape.ParseErrorf("workday board %q: %v", co.Slug, err)
	}
	if s.isBlocked(b.Host) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, b.Host)
	}

	endpoint := b.jobsEndpoint()
	const limit = 50
	var out []domain.ListingSummary

	for offset := 0; ; offset += limit {
		payload, _ := json.Marshal(wdRequest{
			AppliedFacets: map[string]any{},
			Limit:         limit,
			Offset:        offset,
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", b.Scheme+"://"+b.Host)
		req.Header.Set("Referer", strings.TrimRight(co.Slug, "/"))

		if s.limiter != nil {
			if err := s.limiter.WaitURL(ctx, endpoint); err != nil {
				return nil, err
			}
		}
		res, err := s.hc.Do(req)
		if err != nil {
			return nil, scrape.FetchErrorf("workday post jobs: %v", err)
		}
		if res.StatusCode == http.StatusForbidden {
			res.Body.Close()
			s.block(b.Host)
			return nil, fmt.Errorf("%w: %s", ErrBlocked, b.Host)
		}
		if res.StatusCode >= 400 {
			res.Body.Close()
			return nil, scrape.FetchErrorf("workday status %d", res.StatusCode)
		}

		var page wdResponse
		err = json.NewDecoder(res.Body).Decode(&page)
		res.Body.Close()
		if err != nil {
			return nil, scrape.ParseErrorf("workday decode: %v", err)
		}

		for _, p := range page.JobPostings {
			id := jobIDFromPath(p.ExternalPath, p.BulletFields)
			if id == "" || strings.TrimSpace(p.Title) == "" {
				continue
			}
			sum := domain.ListingSummary{
				ID:       id,
				Title:    util.CleanText(p.Title),
				Location: util.NormalizeLocation(p.LocationsText),
				URL:      b.absoluteURL(p.ExternalPath),
			}
			if t, err := time.Parse("2006-01-02", p.PostedOnDate); err == nil {
				sum.PostedOn = &t
			}
			out = append(out, sum)
		}

		if len(page.JobPostings) == 0 || len(out) >= page.Total {
			break
		}
	}
	return out, nil
}

func (s *Scraper) Detail(ctx context.Context, co scrape.Company, sum domain.ListingSummary) (domain.Details, error) {
	b, err := parseBoardURL(co.Slug)
	if err != nil {
		return domain.Details{}, scrape.ParseErrorf("workday board %q: %v", co.Slug, err)
	}

	// cxs serves job detail at the same path the public URL uses
	u, err := url.Parse(sum.URL)
	if err != nil {
		return domain.Details{}, scrape.ParseErrorf("workday job url %q: %v", sum.URL, err)
	}
	endpoint := fmt.Sprintf("%s://%s/wday/cxs/%s/%s%s", b.Scheme, b.Host, b.Tenant, b.Site, jobPath(u.Path, b.Site))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Details{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, endpoint); err != nil {
			return domain.Details{}, err
		}
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return domain.Details{}, scrape.FetchErrorf("workday get job: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return domain.Details{}, scrape.FetchErrorf("workday job status %d", res.StatusCode)
	}

	var info wdJobInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return domain.Details{}, scrape.ParseErrorf("workday job decode: %v", err)
	}

	d := domain.Details{
		Description: info.JobPostingInfo.JobDescription,
		ApplyURL:    info.JobPostingInfo.ExternalURL,
	}
	if d.Empty() {
		return domain.Details{}, scrape.ParseErrorf("workday job %s has no description", sum.ID)
	}
	return d, nil
}

func (s *Scraper) isBlocked(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockedHost[host]
}

func (s *Scraper) block(host string) {
	s.mu.Lock()
	s.blockedHost[host] = true
	s.mu.Unlock()
}

func parseBoardURL(raw string) (board, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return board{}, errors.New("empty board url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return board{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return board{}, fmt.Errorf("missing host in %q", raw)
	}
	parts := strings.Split(u.Host, ".")
	if len(parts) < 3 {
		return board{}, fmt.Errorf("unexpected host %q", u.Host)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return board{}, fmt.Errorf("unexpected path %q", u.Path)
	}
	if looksLikeLocale(segs[0]) && len(segs) >= 2 {
		segs = segs[1:]
	}
	site := segs[len(segs)-1]
	if site == "" {
		return board{}, fmt.Errorf("could not derive site from %q", u.Path)
	}

	return board{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: parts[0],
		Site:   site,
	}, nil
}

func looksLikeLocale(s string) bool {
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

func (b board) jobsEndpoint() string {
	return fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", b.Scheme, b.Host, b.Tenant, b.Site)
}

func (b board) absoluteURL(externalPath string) string {
	p := strings.TrimSpace(externalPath)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return b.Scheme + "://" + b.Host + p
}

// jobPath reduces a public posting path to the /job/... tail the cxs
// detail endpoint expects.
func jobPath(fullPath, site string) string {
	if i := strings.Index(fullPath, "/job/"); i >= 0 {
		return fullPath[i:]
	}
	return strings.TrimPrefix(fullPath, "/"+site)
}

// jobIDFromPath extracts the requisition id, preferring the trailing _JR
// token of the external path, falling back to the first bullet field.
func jobIDFromPath(externalPath string, bullets []string) string {
	p := strings.Trim(externalPath, "/")
	if i := strings.LastIndex(p, "_"); i >= 0 && i+1 < len(p) {
		return p[i+1:]
	}
	for _, b := range bullets {
		if b = strings.TrimSpace(b); b != "" {
			return b
		}
	}
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	return segs[len(segs)-1]
}
