package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
//
// Timestamps are stored as Unix nanoseconds so range filters compare
// integers. The attempted column holds the backend ids of the attempt trail
// as ",a,b,c," so a backend filter is a single LIKE.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    timestamp_ns INTEGER NOT NULL,
    recorded_ns INTEGER NOT NULL,

    -- Request
    target TEXT NOT NULL,
    model TEXT,
    caller TEXT,
    sensitive BOOLEAN NOT NULL,
    request_hash TEXT,

    -- Routing
    attempts TEXT NOT NULL,
    attempted TEXT NOT NULL,
    final_status TEXT NOT NULL,
    backend TEXT,
    cache_hit BOOLEAN NOT NULL,
    error TEXT,

    -- Outcome
    prompt_tokens INTEGER,
    completion_tokens INTEGER,
    total_tokens INTEGER,
    cost REAL,
    latency_ms INTEGER
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_audit_request_id ON audit_events(request_id);
CREATE INDEX IF NOT EXISTS idx_audit_final_status ON audit_events(final_status);
CREATE INDEX IF NOT EXISTS idx_audit_caller ON audit_events(caller);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertEvent = `
INSERT OR IGNORE INTO audit_events (
    id, request_id, timestamp_ns, recorded_ns,
    target, model, caller, sensitive, request_hash,
    attempts, attempted, final_status, backend, cache_hit, error,
    prompt_tokens, completion_tokens, total_tokens, cost, latency_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `
    id, request_id, timestamp_ns,
    target, model, caller, sensitive, request_hash,
    attempts, final_status, backend, cache_hit, error,
    prompt_tokens, completion_tokens, total_tokens, cost, latency_ms
`
