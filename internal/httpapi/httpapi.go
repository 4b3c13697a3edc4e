package httpapi

import (
	"sync/atomic"

	"joblens-engine/internal/config"
	"joblens-engine/internal/events"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/store"
)

// Deps carries everything the handlers touch. Cfg is the hot-reloadable
// config snapshot; Targets derives the runnable (source, company) pairs
// from the current snapshot on every call.
type Deps struct {
	Store   *store.Store
	Runner  *scrape.Runner
	Hub     *events.Hub
	Cfg     *atomic.Value // holds config.Config
	CfgPath string
	Targets func(config.Config) []scrape.Target
}

func (d Deps) config() config.Config {
	return d.Cfg.Load().(config.Config)
}
