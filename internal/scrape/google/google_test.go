package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
)

const listPage = `<html><body><main><ul>
  <li>
    <h3>Software Engineer, Search</h3>
    <span class="r0wTof">Mountain View, CA, USA</span>
    <a href="jobs/results/123456789-software-engineer-search">Learn more</a>
  </li>
  <li>
    <h3>Staff SRE</h3>
    <span class="r0wTof">Remote</span>
    <a href="/about/careers/applications/jobs/results/987654321-staff-sre">Learn more</a>
  </li>
  <li><a href="/about/careers/teams">Not a job card</a></li>
</ul></main></body></html>`

const detailPage = `<html><body>
  <h2 class="p1N2lc">Software Engineer, Search</h2>
  <div class="description-body">Build search things.</div>
  <h3>Minimum qualifications:</h3>
  <ul><li>BS degree</li><li>3 years of Go</li></ul>
  <h3>Preferred qualifications:</h3>
  <ul><li>Distributed systems</li></ul>
  <h4>Responsibilities</h4>
  <ul><li>Write code</li><li>Review code</li></ul>
  <a href="/about/careers/applications/apply?jobId=123456789">Apply</a>
</body></html>`

func TestFetchPageParsesCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listPage))
	}))
	defer srv.Close()

	s := New(Config{}, nil)
	cards, err := s.fetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	require.Equal(t, "123456789", cards[0].ID)
	require.Equal(t, "Software Engineer, Search", cards[0].Title)
	require.Equal(t, "Mountain View, CA, USA", cards[0].Location)
	require.Equal(t, "987654321", cards[1].ID)
}

func TestListStopsOnRepeatedPage(t *testing.T) {
	// out-of-range page numbers get the same cards back; the walk must stop
	// instead of burning MaxPages requests
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(listPage))
	}))
	defer srv.Close()

	s := New(Config{MaxPages: 10}, nil)
	s.base = srv.URL

	cards, err := s.List(context.Background(), scrape.Company{Slug: "google", Name: "Google"})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.EqualValues(t, 2, hits.Load(), "a page with no unseen ids ends the walk")
}

func TestFetchPageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Config{}, nil)
	_, err := s.fetchPage(context.Background(), srv.URL)
	require.ErrorIs(t, err, scrape.ErrFetch)
}

func TestDetailParsesSections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage))
	}))
	defer srv.Close()

	s := New(Config{}, nil)
	d, err := s.Detail(context.Background(), scrape.Company{}, domain.ListingSummary{ID: "123456789", URL: srv.URL})
	require.NoError(t, err)

	require.Equal(t, []string{"BS degree", "3 years of Go"}, d.MinimumQuals)
	require.Equal(t, []string{"Distributed systems"}, d.PreferredQuals)
	require.Equal(t, []string{"Write code", "Review code"}, d.Responsibilities)
	require.Equal(t, "Build search things.", d.Description)
	require.Contains(t, d.ApplyURL, "/apply?jobId=123456789")
}

func TestDetailEmptyPageIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>consent wall</body></html>`))
	}))
	defer srv.Close()

	s := New(Config{}, nil)
	_, err := s.Detail(context.Background(), scrape.Company{}, domain.ListingSummary{URL: srv.URL})
	require.ErrorIs(t, err, scrape.ErrFetch)
}

func TestExtractJobID(t *testing.T) {
	cases := map[string]string{
		"jobs/results/123456789-software-engineer":                          "123456789",
		"/about/careers/applications/jobs/results/42-title?page=2":          "42",
		"https://www.google.com/about/careers/applications/jobs/results/7-": "7",
		"/about/careers/teams":                                              "",
		"jobs/results/":                                                     "",
	}
	for href, want := range cases {
		require.Equal(t, want, extractJobID(href), href)
	}
}

func TestTitleWanted(t *testing.T) {
	s := New(Config{
		IncludeTitles: []string{"engineer", "sre"},
		ExcludeTitles: []string{"intern"},
	}, nil)

	require.True(t, s.titleWanted("Software Engineer III"))
	require.True(t, s.titleWanted("Senior SRE"))
	require.False(t, s.titleWanted("Engineering Intern"), "exclude wins over include")
	require.False(t, s.titleWanted("Product Manager"))

	all := New(Config{}, nil)
	require.True(t, all.titleWanted("Anything"), "empty include list accepts all")
}
