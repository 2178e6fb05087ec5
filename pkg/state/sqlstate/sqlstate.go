// Package sqlstate provides SQLite-backed dispatcher state.
//
// A Store owns one database. Each Object is a property view over one row
// namespace in that database and satisfies beanstore.Store and
// localdata.Provider, so receivers built from a beanstore recipe persist
// their properties across restarts. Values are stored as JSON.
package sqlstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	"mercator-hq/interpose/pkg/traits/localdata"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("sqlstate: store closed")

// Config configures a Store.
type Config struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQLite driver: DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// WALMode enables write-ahead logging.
	WALMode bool

	// Logger receives storage errors that cannot be returned to callers.
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Driver:      DriverModernc,
		BusyTimeout: 5 * time.Second,
		WALMode:     true,
	}
}

// Store persists object properties in SQLite.
type Store struct {
	db        *sql.DB
	cfg       Config
	logger    *slog.Logger
	closeOnce sync.Once
	closed    chan struct{}

	getStmt    *sql.Stmt
	setStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	namesStmt  *sql.Stmt
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "state.sqlstate", "driver", cfg.Driver),
		closed: make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Debug("state store opened", "path", cfg.Path, "wal_mode", cfg.WALMode)
	return s, nil
}

func buildDSN(cfg Config) (string, error) {
	ms := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverModernc:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, ms)
		if cfg.WALMode {
			dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
		}
		return dsn, nil
	case DriverMattn:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, ms)
		if cfg.WALMode {
			dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS object_properties (
		object_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (object_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_object_properties_updated ON object_properties(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT value FROM object_properties
		WHERE object_id = ? AND name = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.setStmt, err = s.db.Prepare(`
		INSERT INTO object_properties (object_id, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (object_id, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM object_properties
		WHERE object_id = ? AND name = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.namesStmt, err = s.db.Prepare(`
		SELECT name FROM object_properties
		WHERE object_id = ?
		ORDER BY name
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare names statement: %w", err)
	}
	return nil
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Object returns the property view for id. Objects are cheap; two views
// with the same id share the persisted properties but not local data.
func (s *Store) Object(id string) *Object {
	return &Object{store: s, id: id}
}

// Get loads one property. found is false when the property is unset.
func (s *Store) Get(ctx context.Context, id, name string) (value any, found bool, err error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}
	var raw string
	err = s.getStmt.QueryRowContext(ctx, id, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load property %s.%s: %w", id, name, err)
	}
	value, err = decodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal property %s.%s: %w", id, name, err)
	}
	return value, true, nil
}

// decodeValue decodes a stored JSON value. Integral numbers come back as
// int64 (or uint64 above the int64 range) so they survive without passing
// through float64; other numbers are float64.
func decodeValue(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
	}
	return v
}

// Set stores one property.
func (s *Store) Set(ctx context.Context, id, name string, value any) error {
	if s.isClosed() {
		return ErrClosed
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal property %s.%s: %w", id, name, err)
	}
	if _, err := s.setStmt.ExecContext(ctx, id, name, string(raw), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save property %s.%s: %w", id, name, err)
	}
	return nil
}

// Delete removes one property.
func (s *Store) Delete(ctx context.Context, id, name string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, err := s.deleteStmt.ExecContext(ctx, id, name); err != nil {
		return fmt.Errorf("failed to delete property %s.%s: %w", id, name, err)
	}
	return nil
}

// Names returns the property names stored for id in sorted order.
func (s *Store) Names(ctx context.Context, id string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	rows, err := s.namesStmt.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return names, nil
}

// Cleanup removes properties not updated since olderThan and returns the
// number of rows removed.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM object_properties WHERE updated_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Checkpoint runs a passive WAL checkpoint. It is a no-op without WAL mode.
func (s *Store) Checkpoint(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	if !s.cfg.WALMode {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable. It serves as a readiness
// check.
func (s *Store) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.cfg.Driver }

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.closed)
		for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.deleteStmt, s.namesStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if s.cfg.WALMode {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		}
		closeErr = s.db.Close()
	})
	return closeErr
}

// Object is a persisted property bag for one id.
type Object struct {
	store *Store
	id    string
	local localdata.Table
}

// ID returns the object id.
func (o *Object) ID() string { return o.id }

// Property loads name.
func (o *Object) Property(name string) (any, bool, error) {
	return o.store.Get(context.Background(), o.id, name)
}

// SetProperty stores value under name.
func (o *Object) SetProperty(name string, value any) error {
	return o.store.Set(context.Background(), o.id, name, value)
}

// Names returns the object's stored property names.
func (o *Object) Names(ctx context.Context) ([]string, error) {
	return o.store.Names(ctx, o.id)
}

// LocalTable returns the object's in-memory local data table.
func (o *Object) LocalTable() *localdata.Table { return &o.local }

// DispatchKey returns the driver name, so objects of different backends
// never share resolved chains.
func (o *Object) DispatchKey() any { return o.store.cfg.Driver }

// String returns "sqlstate.Object(<id>)".
func (o *Object) String() string { return "sqlstate.Object(" + o.id + ")" }
