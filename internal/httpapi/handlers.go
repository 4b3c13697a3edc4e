package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"joblens-engine/internal/config"
	"joblens-engine/internal/domain"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/secrets"
	"joblens-engine/internal/store"
)

func (d Deps) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	opts := store.ListOpts{
		Company: q.Get("company"),
		Status:  strings.ToUpper(q.Get("status")),
		Query:   q.Get("q"),
		Sort:    q.Get("sort"),
	}
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))

	listings, err := d.Store.ListListings(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := d.Store.CountListings(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"total": total, "jobs": listings})
}

func (d Deps) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad listing id")
		return
	}

	var (
		l   domain.Listing
		err error
	)
	if company := r.URL.Query().Get("company"); company != "" {
		l, err = d.Store.GetListing(r.Context(), company, id)
	} else {
		l, err = d.Store.FindListing(r.Context(), id)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, l)
}

func (d Deps) handleTriggerScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	cfg := d.config()

	mode := domain.RunMode(q.Get("mode"))
	if mode == "" {
		mode = domain.RunMode(cfg.Scrape.Mode)
	}
	if mode != domain.ModeFull && mode != domain.ModeIncremental {
		writeError(w, http.StatusBadRequest, "mode must be full or incremental")
		return
	}

	targets := d.Targets(cfg)
	if len(targets) == 0 {
		writeError(w, http.StatusConflict, "no sources enabled")
		return
	}

	company := q.Get("company")
	if company != "" {
		t, ok := scrape.FindTarget(targets, company)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown company "+company)
			return
		}
		targets = []scrape.Target{t}
	}

	// detach from the request: a scrape outlives the HTTP call
	go d.Runner.RunAll(detachedContext(r), targets, mode)

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Company.Name)
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{"started": true, "mode": mode, "companies": names})
}

// detachedContext keeps request values but drops the request's cancelation,
// so background scrapes survive the client disconnecting.
func detachedContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (d Deps) handleScrapeRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	runs, err := d.Store.ListRuns(r.Context(), q.Get("company"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (d Deps) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"companies": d.Runner.Statuses()})
}

func (d Deps) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, d.config())
	case http.MethodPut:
		var next config.Config
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "bad config body: "+err.Error())
			return
		}
		clean, vr := config.NormalizeAndValidate(next)
		if !vr.OK() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			writeJSON(w, vr)
			return
		}
		if err := config.SaveAtomic(d.CfgPath, clean); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		d.Cfg.Store(clean)
		log.Printf("[config] saved %s (%d warnings)", d.CfgPath, len(vr.Warnings))
		writeJSON(w, map[string]any{"saved": true, "warnings": vr.Warnings})
	default:
		http.Error(w, "GET or PUT only", http.StatusMethodNotAllowed)
	}
}

func (d Deps) handleConfigPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"path": d.CfgPath})
}

func (d Deps) handleDBSecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad body: "+err.Error())
		return
	}
	if err := secrets.SetDBPassword(body.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"saved": true})
}
