package storage

const schemaSQL = `
-- One row per crawl invocation
CREATE TABLE IF NOT EXISTS crawl_runs (
    id TEXT PRIMARY KEY NOT NULL,
    start_url TEXT NOT NULL,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

-- Pages fetched successfully (mirror of checked.txt)
CREATE TABLE IF NOT EXISTS checked_pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id),
    url TEXT NOT NULL,
    checked_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checked_run ON checked_pages(run_id);
CREATE INDEX IF NOT EXISTS idx_checked_url ON checked_pages(url);

-- URLs that exhausted their attempts (mirror of error.txt)
CREATE TABLE IF NOT EXISTS failed_pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id),
    url TEXT NOT NULL,
    message TEXT NOT NULL,
    occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_pages(run_id);

-- Pages mentioning the old brand together with a new one
CREATE TABLE IF NOT EXISTS name_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id),
    url TEXT NOT NULL,
    detected_at DATETIME NOT NULL
);

-- One row per match, position keeps the anchor order
CREATE TABLE IF NOT EXISTS stale_references (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id),
    url TEXT NOT NULL,
    position INTEGER NOT NULL,
    finding TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stale_run_url ON stale_references(run_id, url);

-- Per-run totals for reporting
CREATE VIEW IF NOT EXISTS run_summary AS
SELECT
    r.id,
    r.start_url,
    r.started_at,
    r.finished_at,
    (SELECT COUNT(*) FROM checked_pages c WHERE c.run_id = r.id) AS checked,
    (SELECT COUNT(*) FROM failed_pages f WHERE f.run_id = r.id) AS errors,
    (SELECT COUNT(*) FROM name_changes n WHERE n.run_id = r.id) AS name_changes,
    (SELECT COUNT(DISTINCT s.url) FROM stale_references s WHERE s.run_id = r.id) AS stale_pages
FROM crawl_runs r;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
