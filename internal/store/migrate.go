package store

// Schema is shared between SQLite and Postgres: TEXT timestamps (RFC 3339,
// UTC) and an integer details_scraped flag keep scans identical across
// drivers. details is a JSON blob; Postgres could use JSONB but nothing
// queries inside it.
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS listings (
  id TEXT NOT NULL,
  company TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'OPEN',
  details TEXT NOT NULL DEFAULT '{}',
  posted_on TEXT,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  closed_on TEXT,
  consecutive_misses INTEGER NOT NULL DEFAULT 0,
  details_scraped INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (company, id)
);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_company_status ON listings(company, status);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen_at);`,
	`CREATE TABLE IF NOT EXISTS scrape_runs (
  run_id TEXT PRIMARY KEY,
  company TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL,
  started_at TEXT NOT NULL,
  completed_at TEXT,
  jobs_seen INTEGER NOT NULL DEFAULT 0,
  new_jobs INTEGER NOT NULL DEFAULT 0,
  updated_jobs INTEGER NOT NULL DEFAULT 0,
  closed_jobs INTEGER NOT NULL DEFAULT 0,
  details_fetched INTEGER NOT NULL DEFAULT 0,
  error_count INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_runs_company ON scrape_runs(company, started_at);`,
}

func (s *Store) migrate() error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
