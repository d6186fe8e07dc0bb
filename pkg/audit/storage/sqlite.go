package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db        *sql.DB
	config    *SQLiteConfig
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewSQLiteStorage opens the database, applies pragmas and creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, audit.NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer; one connection also keeps the
	// per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets pragmas, creates the schema and verifies its version.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busy := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
	if _, err := s.db.Exec(busy); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists an event. A repeated id is ignored.
func (s *SQLiteStorage) Store(ctx context.Context, event *audit.Event) error {
	attempts, err := json.Marshal(event.Attempts)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}

	_, err = s.db.ExecContext(ctx, insertEvent,
		event.ID, event.RequestID, event.Timestamp.UnixNano(), time.Now().UnixNano(),
		event.Target, event.Model, event.Caller, event.Sensitive, event.RequestHash,
		string(attempts), attemptedColumn(event), string(event.FinalStatus), event.Backend, event.CacheHit, nullable(event.Error),
		event.Usage.PromptTokens, event.Usage.CompletionTokens, event.Usage.TotalTokens, event.Cost, event.Latency.Milliseconds(),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves events matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Event, error) {
	if query == nil {
		query = &audit.Query{}
	}

	where, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM audit_events"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if ascending(query) {
		order = "ASC"
	}
	sqlQuery += " ORDER BY timestamp_ns " + order

	// SQLite treats a negative LIMIT as unbounded.
	limit := 100
	if query.Limit != 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	events := []*audit.Event{}
	for rows.Next() {
		event, err := scanRow(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return events, nil
}

// Count returns the number of events matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_events"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes events matching the query filters.
func (s *SQLiteStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM audit_events"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.db.Close(); cerr != nil {
			err = audit.NewStorageError("sqlite", "close", cerr)
			return
		}
		s.logger.Info("SQLite audit storage closed")
	})
	return err
}

// buildWhereClause builds a SQL WHERE clause (without the keyword) and its
// arguments from the query filters.
func buildWhereClause(query *audit.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp_ns >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp_ns <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, query.RequestID)
	}
	if query.Backend != "" {
		conditions = append(conditions, "attempted LIKE ?")
		args = append(args, "%,"+query.Backend+",%")
	}
	if query.FinalStatus != "" {
		conditions = append(conditions, "final_status = ?")
		args = append(args, string(query.FinalStatus))
	}
	if query.Caller != "" {
		conditions = append(conditions, "caller = ?")
		args = append(args, query.Caller)
	}
	if query.CacheHit != nil {
		conditions = append(conditions, "cache_hit = ?")
		args = append(args, *query.CacheHit)
	}

	return strings.Join(conditions, " AND "), args
}

// scanRow scans a database row into an Event.
func scanRow(rows *sql.Rows) (*audit.Event, error) {
	var (
		event                        audit.Event
		timestampNs, latencyMs       int64
		attempts, finalStatus        string
		model, caller, hash, backend sql.NullString
		errorVal                     sql.NullString
		prompt, completion, total    sql.NullInt64
		cost                         sql.NullFloat64
	)

	err := rows.Scan(
		&event.ID, &event.RequestID, &timestampNs,
		&event.Target, &model, &caller, &event.Sensitive, &hash,
		&attempts, &finalStatus, &backend, &event.CacheHit, &errorVal,
		&prompt, &completion, &total, &cost, &latencyMs,
	)
	if err != nil {
		return nil, err
	}

	event.Timestamp = time.Unix(0, timestampNs)
	event.Model = model.String
	event.Caller = caller.String
	event.RequestHash = hash.String
	event.FinalStatus = audit.FinalStatus(finalStatus)
	event.Backend = backend.String
	event.Error = errorVal.String
	event.Usage = backends.Usage{
		PromptTokens:     int(prompt.Int64),
		CompletionTokens: int(completion.Int64),
		TotalTokens:      int(total.Int64),
	}
	event.Cost = cost.Float64
	event.Latency = time.Duration(latencyMs) * time.Millisecond

	if err := json.Unmarshal([]byte(attempts), &event.Attempts); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}

	return &event, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
