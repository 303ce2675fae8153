// Package journal appends every successful position fix to a SQL table.
// PostgreSQL is reached through pgx's database/sql driver and SQLite through
// modernc's pure Go driver.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/kb"
	"github.com/soupbadger/rpi-space/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DefaultBuffer is the number of fixes queued before new ones are dropped.
const DefaultBuffer = 256

const drainTimeout = 2 * time.Second

// ErrUnsupportedDriver is returned by Open for unknown driver names.
var ErrUnsupportedDriver = errors.New("unsupported journal driver")

// Config selects and tunes the journal database.
type Config struct {
	Driver     string        // sqlite | pgx
	DSN        string        // file path, ":memory:", or postgres URL
	Satellite  string        // stamped on every row
	Buffer     int           // queued fixes; DefaultBuffer when <= 0
	MaxElapsed time.Duration // how long Open keeps pinging; 0 means a single attempt
}

// Journal writes fixes asynchronously so the tracker loop never waits on the
// database.
type Journal struct {
	db        *sql.DB
	driver    string
	runID     string
	satellite string
	log       logging.Logger

	queue   chan model.Fix
	dropped atomic.Uint64
	written atomic.Uint64
}

// Open connects, waits for the database to answer, and creates the fixes
// table if needed.
func Open(ctx context.Context, cfg Config, log logging.Logger) (*Journal, error) {
	if log == nil {
		log = logging.Noop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal: empty DSN for driver %s", driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases alive and serialises writes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := ping(ctx, db, cfg.MaxElapsed, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	j := &Journal{
		db:        db,
		driver:    driver,
		runID:     uuid.NewString(),
		satellite: cfg.Satellite,
		queue:     make(chan model.Fix, buffer),
	}
	j.log = log.With(logging.String("run_id", j.runID), logging.String("driver", driver))

	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	j.log.Info(ctx, "journal ready")
	return j, nil
}

func ping(ctx context.Context, db *sql.DB, maxElapsed time.Duration, log logging.Logger) error {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn(ctx, "journal database not ready, retrying", logging.Duration("retry_in", next), logging.Err(err))
		}),
	}
	if maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(maxElapsed))
	} else {
		opts = append(opts, backoff.WithMaxTries(1))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}, opts...)
	if err != nil {
		return fmt.Errorf("ping journal database: %w", err)
	}
	return nil
}

func (j *Journal) migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if j.driver == DriverPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	stmt := `CREATE TABLE IF NOT EXISTS fixes (
		id ` + id + `,
		run_id TEXT NOT NULL,
		satellite TEXT NOT NULL,
		source TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		fixed_at_ms BIGINT NOT NULL
	)`
	if _, err := j.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create fixes table: %w", err)
	}
	return nil
}

// RunID identifies this process's rows.
func (j *Journal) RunID() string { return j.runID }

// DB exposes the underlying handle for read-side tooling.
func (j *Journal) DB() *sql.DB { return j.db }

// Written returns the number of fixes persisted so far.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Dropped returns the number of fixes discarded because the queue was full.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Append writes fix synchronously.
func (j *Journal) Append(ctx context.Context, fix model.Fix) error {
	query := `INSERT INTO fixes (run_id, satellite, source, lat, lon, fixed_at_ms) VALUES (?, ?, ?, ?, ?, ?)`
	if j.driver == DriverPostgres {
		query = `INSERT INTO fixes (run_id, satellite, source, lat, lon, fixed_at_ms) VALUES ($1, $2, $3, $4, $5, $6)`
	}
	_, err := j.db.ExecContext(ctx, query,
		j.runID, j.satellite, fix.Source, fix.Coord.Lat, fix.Coord.Lon, fix.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert fix: %w", err)
	}
	j.written.Add(1)
	return nil
}

// Enqueue queues fix for the writer started by Run. It never blocks.
func (j *Journal) Enqueue(fix model.Fix) bool {
	select {
	case j.queue <- fix:
		return true
	default:
		j.dropped.Add(1)
		return false
	}
}

// Attach subscribes the journal to store. The returned function unsubscribes.
func (j *Journal) Attach(store *kb.TrackStore) func() {
	return store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventFixRecorded {
			if !j.Enqueue(ev.Fix) {
				j.log.Warn(context.Background(), "journal queue full, fix dropped")
			}
		}
	})
}

// Run writes queued fixes until ctx is cancelled, then drains what is left
// with a short grace period. Writes never use ctx itself, so a cancellation
// landing mid-write does not lose the fix.
func (j *Journal) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return j.drain(writeCtx)
		default:
		}

		select {
		case fix := <-j.queue:
			j.write(writeCtx, fix)
		case <-ctx.Done():
			return j.drain(writeCtx)
		}
	}
}

func (j *Journal) drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case fix := <-j.queue:
			j.write(ctx, fix)
		default:
			return nil
		}
	}
}

func (j *Journal) write(ctx context.Context, fix model.Fix) {
	if err := j.Append(ctx, fix); err != nil {
		j.log.Warn(ctx, "journal write failed", logging.Err(err))
	}
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
