package scrape

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

var ErrRunInProgress = errors.New("scrape already running for company")

// companyLocks enforces the single-writer rule: one run per company at a
// time, across goroutines (mutex map) and across processes (lock files in
// the data dir).
type companyLocks struct {
	mu      sync.Mutex
	held    map[string]bool
	lockDir string // empty disables file locks (tests, in-memory DB)
	flocks  map[string]*flock.Flock
}

func newCompanyLocks(lockDir string) *companyLocks {
	return &companyLocks{
		held:    make(map[string]bool),
		flocks:  make(map[string]*flock.Flock),
		lockDir: lockDir,
	}
}

// acquire is non-blocking: a second run for the same company fails fast with
// ErrRunInProgress instead of queueing behind a long scrape.
func (cl *companyLocks) acquire(company string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.held[company] {
		return fmt.Errorf("%w: %s", ErrRunInProgress, company)
	}

	if cl.lockDir != "" {
		if err := os.MkdirAll(cl.lockDir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
		fl := flock.New(filepath.Join(cl.lockDir, lockFileName(company)))
		ok, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("flock %s: %w", company, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s (held by another process)", ErrRunInProgress, company)
		}
		cl.flocks[company] = fl
	}

	cl.held[company] = true
	return nil
}

func (cl *companyLocks) release(company string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if fl, ok := cl.flocks[company]; ok {
		_ = fl.Unlock()
		delete(cl.flocks, company)
	}
	delete(cl.held, company)
}

func lockFileName(company string) string {
	s := strings.ToLower(company)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, s)
	return s + ".lock"
}
