package scrape

import (
	"joblens-engine/internal/config"
)

// Target is one (source, company) pair eligible for a run.
type Target struct {
	Source  Source
	Company Company
}

// SourceFactory builds Source implementations; indirection keeps this
// package free of the concrete scraper imports and makes run tests cheap.
type SourceFactory struct {
	Google     func(config.GoogleCfg) Source
	Greenhouse func() Source
	Lever      func() Source
	Ashby      func() Source
	Workday    func() Source
}

// BuildTargets expands the enabled sources in cfg into runnable targets.
// The Google source covers a single logical company ("Google") regardless
// of query count; ATS sources get one target per configured board.
func (f SourceFactory) BuildTargets(cfg config.Config) []Target {
	var out []Target

	if cfg.Sources.Google.Enabled && f.Google != nil {
		src := f.Google(cfg.Sources.Google)
		out = append(out, Target{Source: src, Company: Company{Slug: "google", Name: "Google"}})
	}

	ats := []struct {
		cfg   config.SourceCfg
		build func() Source
	}{
		{cfg.Sources.Greenhouse, f.Greenhouse},
		{cfg.Sources.Lever, f.Lever},
		{cfg.Sources.Ashby, f.Ashby},
		{cfg.Sources.Workday, f.Workday},
	}
	for _, a := range ats {
		if !a.cfg.Enabled || a.build == nil || len(a.cfg.Companies) == 0 {
			continue
		}
		src := a.build()
		for _, co := range a.cfg.Companies {
			out = append(out, Target{Source: src, Company: Company{Slug: co.Slug, Name: co.Name}})
		}
	}
	return out
}

// FindTarget returns the target whose company name matches (case-exact),
// used by the trigger endpoint and the -once CLI path.
func FindTarget(targets []Target, company string) (Target, bool) {
	for _, t := range targets {
		if t.Company.Name == company {
			return t, true
		}
	}
	return Target{}, false
}
