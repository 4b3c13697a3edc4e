package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a cleaned copy plus everything wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Sources.Google.Queries = trimList(out.Sources.Google.Queries)
	out.Sources.Google.IncludeTitles = trimList(out.Sources.Google.IncludeTitles)
	out.Sources.Google.ExcludeTitles = trimList(out.Sources.Google.ExcludeTitles)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Scrape.Mode {
	case "incremental", "full":
	default:
		res.addErr("scrape.mode must be incremental or full, got %q", out.Scrape.Mode)
	}
	if out.Scrape.DelayMinMS > out.Scrape.DelayMaxMS {
		res.addErr("scrape.delay_min_ms (%d) exceeds delay_max_ms (%d)",
			out.Scrape.DelayMinMS, out.Scrape.DelayMaxMS)
	}
	if out.Scrape.RetryMinWaitS > out.Scrape.RetryMaxWaitS {
		res.addErr("scrape.retry_min_wait_s exceeds retry_max_wait_s")
	}
	if out.Scrape.DetailWorkers > 16 {
		res.addWarn("scrape.detail_workers is high (%d); boards may rate-limit you.", out.Scrape.DetailWorkers)
	}
	if out.Scrape.MissThreshold > 5 {
		res.addWarn("scrape.miss_threshold of %d keeps dead listings open for a long time.", out.Scrape.MissThreshold)
	}

	checkCompanies := func(name string, src SourceCfg) {
		if !src.Enabled {
			return
		}
		if len(src.Companies) == 0 {
			res.addErr("sources.%s is enabled with no companies", name)
		}
		for i, c := range src.Companies {
			if strings.TrimSpace(c.Slug) == "" {
				res.addErr("sources.%s.companies[%d].slug is required", name, i)
			}
			if strings.TrimSpace(c.Name) == "" {
				res.addErr("sources.%s.companies[%d].name is required", name, i)
			}
		}
	}
	checkCompanies("greenhouse", out.Sources.Greenhouse)
	checkCompanies("lever", out.Sources.Lever)
	checkCompanies("ashby", out.Sources.Ashby)
	checkCompanies("workday", out.Sources.Workday)

	if out.Sources.Google.Enabled && len(out.Sources.Google.Queries) == 0 {
		res.addErr("sources.google is enabled with no queries")
	}

	anyEnabled := out.Sources.Google.Enabled || out.Sources.Greenhouse.Enabled ||
		out.Sources.Lever.Enabled || out.Sources.Ashby.Enabled || out.Sources.Workday.Enabled
	if !anyEnabled {
		res.addWarn("no sources enabled; scheduled scrapes will do nothing.")
	}

	return out, res
}
