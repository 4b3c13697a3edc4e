package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"joblens-engine/internal/config"
	"joblens-engine/internal/domain"
	"joblens-engine/internal/events"
	"joblens-engine/internal/httpapi"
	"joblens-engine/internal/scheduler"
	"joblens-engine/internal/scrape"
	"joblens-engine/internal/scrape/ashby"
	"joblens-engine/internal/scrape/google"
	"joblens-engine/internal/scrape/greenhouse"
	"joblens-engine/internal/scrape/lever"
	"joblens-engine/internal/scrape/util"
	"joblens-engine/internal/scrape/workday"
	"joblens-engine/internal/secrets"
	"joblens-engine/internal/store"
)

func main() {
	var (
		once      = flag.Bool("once", false, "run one scrape and exit instead of serving")
		company   = flag.String("company", "", "with -once: scrape only this company")
		mode      = flag.String("mode", "", "with -once: full or incremental (default from config)")
		noDetails = flag.Bool("no-details", false, "with -once: skip detail-page fetches")
	)
	flag.Parse()

	// Engine data dir: use env if provided (the desktop shell passes one),
	// else local folder.
	dataDir := os.Getenv("JOBLENS_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	clean, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		for _, e := range vr.Errors {
			log.Printf("[config] error: %s", e)
		}
		log.Fatalf("config invalid (%s)", userCfgPath)
	}
	for _, wmsg := range vr.Warnings {
		log.Printf("[config] warning: %s", wmsg)
	}
	cfg = clean

	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	dsn, err := secrets.ExpandDSN(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("database dsn: %v", err)
	}
	if !filepath.IsAbs(dsn) && !store.IsPostgresDSN(dsn) && dsn != ":memory:" {
		dsn = filepath.Join(dataDir, dsn)
	}

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	hub := events.NewHub()
	opts := scrape.OptionsFromConfig(cfg)
	if *noDetails {
		opts.FetchDetails = false
	}
	runner := scrape.NewRunner(st, hub, filepath.Join(dataDir, "locks"), opts)

	limiter := util.NewHostLimiter(cfg.Scrape.HostReqPerSec, cfg.Scrape.HostBurst)
	factory := scrape.SourceFactory{
		Google: func(gc config.GoogleCfg) scrape.Source {
			return google.New(google.Config{
				Queries:       gc.Queries,
				Location:      gc.Location,
				MaxPages:      gc.MaxPages,
				IncludeTitles: gc.IncludeTitles,
				ExcludeTitles: gc.ExcludeTitles,
			}, limiter)
		},
		Greenhouse: func() scrape.Source { return greenhouse.New(limiter) },
		Lever:      func() scrape.Source { return lever.New(limiter) },
		Ashby:      func() scrape.Source { return ashby.New(limiter) },
		Workday:    func() scrape.Source { return workday.New(limiter) },
	}

	if *once {
		runOnce(st, runner, factory, cfg, *company, *mode)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Scrape.Schedule != "" {
		sched := scheduler.New()
		err := sched.Add(ctx, cfg.Scrape.Schedule, "scrape", func(ctx context.Context) error {
			cur := cfgVal.Load().(config.Config)
			runner.RunAll(ctx, factory.BuildTargets(cur), runMode(cur.Scrape.Mode))
			return nil
		})
		if err != nil {
			log.Fatalf("bad scrape schedule %q: %v", cfg.Scrape.Schedule, err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("[scheduler] scrape on %q", cfg.Scrape.Schedule)
	}

	deps := httpapi.Deps{
		Store:   st,
		Runner:  runner,
		Hub:     hub,
		Cfg:     &cfgVal,
		CfgPath: userCfgPath,
		Targets: factory.BuildTargets,
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (db=%s)", addr, cfg.Database.DSN)

	srv := &http.Server{
		Handler:           httpapi.Routes(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shctx)
	}()
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func runOnce(st *store.Store, runner *scrape.Runner, factory scrape.SourceFactory, cfg config.Config, company, mode string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := runMode(cfg.Scrape.Mode)
	if mode != "" {
		m = runMode(mode)
	}

	targets := factory.BuildTargets(cfg)
	if company != "" {
		t, ok := scrape.FindTarget(targets, company)
		if !ok {
			log.Fatalf("unknown company %q", company)
		}
		targets = []scrape.Target{t}
	}
	if len(targets) == 0 {
		log.Fatal("no sources enabled in config")
	}

	runner.RunAll(ctx, targets, m)
}

func runMode(s string) domain.RunMode {
	if s == "full" {
		return domain.ModeFull
	}
	return domain.ModeIncremental
}
