package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Scheduler runs the recurring scrape on a cron spec. Overlapping fires are
// harmless: per-company locks make the second run a no-op.
type Scheduler struct {
	c *cron.Cron
}

func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		c: cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Add registers task under the given cron spec.
func (s *Scheduler) Add(ctx context.Context, spec, name string, task Task) error {
	_, err := s.c.AddFunc(spec, func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			log.Printf("[%s] error: %v", name, err)
			return
		}
		log.Printf("[%s] completed in %s", name, time.Since(start).Round(time.Millisecond))
	})
	return err
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
