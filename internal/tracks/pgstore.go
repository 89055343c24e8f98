package tracks

import (
	"context"
	"fmt"

	"github.com/droneguard/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps fixes in PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fixes (
            drone_id TEXT NOT NULL,
            ts BIGINT NOT NULL,
            lon DOUBLE PRECISION NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            alt DOUBLE PRECISION NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_fixes_drone_time ON fixes (drone_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PgStore) AddFixes(ctx context.Context, droneID string, fixes []models.TimedFix) error {
	if len(fixes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range fixes {
		batch.Queue(`INSERT INTO fixes (drone_id, ts, lon, lat, alt) VALUES ($1, $2, $3, $4, $5)`,
			droneID, f.Timestamp, f.Position.Lon, f.Position.Lat, f.Position.Alt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range fixes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting fix %d: %w", i, err)
		}
	}
	return nil
}

func (s *PgStore) ListRoutes(ctx context.Context) ([]models.RouteSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT drone_id, MIN(ts), MAX(ts), COUNT(*) FROM fixes GROUP BY drone_id`)
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

func (s *PgStore) Track(ctx context.Context, droneID string, start, end int64) (models.Track, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, lon, lat, alt FROM fixes WHERE drone_id = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts`,
		droneID, start, end)
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

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
