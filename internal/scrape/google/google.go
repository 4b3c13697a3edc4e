package google

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/scrape/util"
)

const baseURL = "https://www.google.com/about/careers/applications/jobs/results"

type Config struct {
	Queries       []string
	Location      string
	MaxPages      int
	IncludeTitles []string // empty means accept all
	ExcludeTitles []string
}

// Scraper walks the careers results pages per query and parses listing
// cards and detail pages out of the rendered HTML.
type Scraper struct {
	cfg     Config
	base    string
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &Scraper{
		cfg:     cfg,
		base:    baseURL,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string { return "google" }

func (s *Scraper) List(ctx context.Context, co scrape.Company) ([]domain.ListingSummary, error) {
	seen := map[string]bool{}
	var out []domain.ListingSummary

	queries := s.cfg.Queries
	if len(queries) == 0 {
		queries = []string{""}
	}

	for _, q := range queries {
		for page := 1; page <= s.cfg.MaxPages; page++ {
			pageURL := s.pageURL(q, page)
			cards, err := s.fetchPage(ctx, pageURL)
			if err != nil {
				// a truncated snapshot would look like mass removals
				// downstream, so fail the whole list
				return nil, err
			}
			if len(cards) == 0 {
				break
			}

			fresh, kept := 0, 0
			for _, c := range cards {
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				fresh++
				if !s.titleWanted(c.Title) {
					continue
				}
				out = append(out, c)
				kept++
			}
			log.Printf("[google] query=%q page=%d cards=%d new=%d kept=%d", q, page, len(cards), fresh, kept)

			// past the last page the site re-serves earlier results
			if fresh == 0 {
				break
			}

			if err := util.SleepJitter(ctx, 300*time.Millisecond, 900*time.Millisecond); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *Scraper) pageURL(query string, page int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	if s.cfg.Location != "" {
		v.Set("location", s.cfg.Location)
	}
	v.Set("page", fmt.Sprintf("%d", page))
	return s.base + "?" + v.Encode()
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) ([]domain.ListingSummary, error) {
	doc, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var cards []domain.ListingSummary
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find(`a[href*="jobs/results/"]`).First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		id := extractJobID(href)
		if id == "" {
			return
		}

		title := util.CleanText(li.Find("h3").First().Text())
		if title == "" {
			title = util.CleanText(a.AttrOr("aria-label", ""))
			title = strings.TrimPrefix(title, "Learn more about ")
		}
		if title == "" {
			return
		}

		loc := util.CleanText(li.Find("[class*='location'], .r0wTof").First().Text())

		cards = append(cards, domain.ListingSummary{
			ID:       id,
			Title:    title,
			Location: util.NormalizeLocation(loc),
			URL:      absoluteURL(href),
		})
	})
	return cards, nil
}

func (s *Scraper) Detail(ctx context.Context, _ scrape.Company, sum domain.ListingSummary) (domain.Details, error) {
	doc, err := s.get(ctx, sum.URL)
	if err != nil {
		return domain.Details{}, err
	}

	var d domain.Details

	// Qualification sections sit under h3/h4 headings followed by a ul.
	doc.Find("h3, h4").Each(func(_ int, h *goquery.Selection) {
		heading := strings.ToLower(util.CleanText(h.Text()))
		items := listItems(h.NextFiltered("ul"))
		if len(items) == 0 {
			items = listItems(h.Parent().Find("ul").First())
		}
		switch {
		case strings.Contains(heading, "minimum qualification"):
			d.MinimumQuals = items
		case strings.Contains(heading, "preferred qualification"):
			d.PreferredQuals = items
		case strings.Contains(heading, "responsibilit"):
			d.Responsibilities = items
		}
	})

	if sel := doc.Find("[class*='description'], [itemprop='description']").First(); sel.Length() > 0 {
		d.Description = util.CleanText(sel.Text())
	}
	if sel := doc.Find("[class*='salary'], [class*='compensation']").First(); sel.Length() > 0 {
		d.Salary = util.CleanText(sel.Text())
	}
	if a := doc.Find(`a[href*="/apply?jobId"]`).First(); a.Length() > 0 {
		d.ApplyURL = absoluteURL(a.AttrOr("href", ""))
	}

	if d.Empty() {
		// a consent wall or layout change; treat as retryable
		return domain.Details{}, scrape.FetchErrorf("no detail content at %s", sum.URL)
	}
	return d, nil
}

func (s *Scraper) get(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) JobLens/1.0")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, u); err != nil {
			return nil, err
		}
	}

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, scrape.FetchErrorf("get %s: %v", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return nil, scrape.FetchErrorf("get %s: status %d", u, res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return nil, scrape.ParseErrorf("get %s: status %d", u, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, scrape.ParseErrorf("parse %s: %v", u, err)
	}
	return doc, nil
}

func (s *Scraper) titleWanted(title string) bool {
	low := strings.ToLower(title)
	for _, ex := range s.cfg.ExcludeTitles {
		if ex != "" && strings.Contains(low, strings.ToLower(ex)) {
			return false
		}
	}
	if len(s.cfg.IncludeTitles) == 0 {
		return true
	}
	for _, in := range s.cfg.IncludeTitles {
		if in != "" && strings.Contains(low, strings.ToLower(in)) {
			return true
		}
	}
	return false
}

// extractJobID pulls the numeric id out of a jobs/results/<id>-<slug> href.
func extractJobID(href string) string {
	i := strings.Index(href, "jobs/results/")
	if i < 0 {
		return ""
	}
	tail := href[i+len("jobs/results/"):]
	var id strings.Builder
	for _, r := range tail {
		if r < '0' || r > '9' {
			break
		}
		id.WriteRune(r)
	}
	return id.String()
}

func absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return "https://www.google.com" + href
	}
	return "https://www.google.com/about/careers/applications/" + href
}

func listItems(ul *goquery.Selection) []string {
	var items []string
	ul.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := util.CleanText(li.Text()); t != "" {
			items = append(items, t)
		}
	})
	return items
}
