package tracks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/droneguard/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// DuckOptions tunes the embedded database.
type DuckOptions struct {
	Threads     int
	MemoryLimit string
}

// DuckStore keeps fixes in an embedded DuckDB file. An empty path opens an
// in-memory database.
type DuckStore struct {
	db *sql.DB
	// Appender writes are serialized; reads go through the pool.
	writeMu sync.Mutex
}

func NewDuckStore(path string, opts DuckOptions) (*DuckStore, error) {
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "512MB"
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fixes (
			drone_id VARCHAR NOT NULL,
			ts       BIGINT NOT NULL,
			lon      DOUBLE NOT NULL,
			lat      DOUBLE NOT NULL,
			alt      DOUBLE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fixes_drone_time ON fixes(drone_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DuckStore{db: db}, nil
}

// AddFixes appends fixes with the native Appender API.
func (ds *DuckStore) AddFixes(ctx context.Context, droneID string, fixes []models.TimedFix) error {
	if len(fixes) == 0 {
		return nil
	}
	ds.writeMu.Lock()
	defer ds.writeMu.Unlock()

	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "fixes")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, f := range fixes {
			if err := appender.AppendRow(droneID, f.Timestamp, f.Position.Lon, f.Position.Lat, f.Position.Alt); err != nil {
				return fmt.Errorf("failed to append fix %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

func (ds *DuckStore) ListRoutes(ctx context.Context) ([]models.RouteSummary, error) {
	rows, err := ds.db.QueryContext(ctx, `
		SELECT drone_id, MIN(ts), MAX(ts), COUNT(*)
		FROM fixes
		GROUP BY drone_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}
	defer rows.Close()

	routes := make([]models.RouteSummary, 0)
	for rows.Next() {
		var (
			id         string
			start, end int64
			count      int64
		)
		if err := rows.Scan(&id, &start, &end, &count); err != nil {
			return nil, err
		}
		routes = append(routes, NewRouteSummary(id, start, end, int(count)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRoutes(routes)
	return routes, nil
}

func (ds *DuckStore) Track(ctx context.Context, droneID string, start, end int64) (models.Track, error) {
	rows, err := ds.db.QueryContext(ctx, `
		SELECT ts, lon, lat, alt
		FROM fixes
		WHERE drone_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts
	`, droneID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	defer rows.Close()

	track := make(models.Track, 0, 64)
	for rows.Next() {
		var f models.TimedFix
		if err := rows.Scan(&f.Timestamp, &f.Position.Lon, &f.Position.Lat, &f.Position.Alt); err != nil {
			return nil, err
		}
		track = append(track, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("%w: %s [%d, %d]", ErrNoFixes, droneID, start, end)
	}
	return track, nil
}

func (ds *DuckStore) Close() error {
	if ds.db == nil {
		return nil
	}
	return ds.db.Close()
}
