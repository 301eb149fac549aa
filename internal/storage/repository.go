package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS debt_observations (
        year          INTEGER PRIMARY KEY,
        gdp           NUMERIC NOT NULL CHECK (gdp > 0),
        external_debt NUMERIC NOT NULL CHECK (external_debt >= 0),
        domestic_debt NUMERIC NOT NULL CHECK (domestic_debt >= 0),
        source        TEXT NOT NULL DEFAULT '',
        updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS leverage_alerts (
        id          BIGSERIAL PRIMARY KEY,
        year        INTEGER NOT NULL UNIQUE,
        debt_to_gdp NUMERIC NOT NULL,
        threshold   NUMERIC NOT NULL,
        direction   TEXT NOT NULL,
        channels    TEXT[] NOT NULL DEFAULT '{}',
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertObservationSQL = `INSERT INTO debt_observations (
        year,
        gdp,
        external_debt,
        domestic_debt,
        source
    ) VALUES (
        $1,$2::numeric,$3::numeric,$4::numeric,$5
    )
    ON CONFLICT (year) DO UPDATE
    SET
        gdp           = EXCLUDED.gdp,
        external_debt = EXCLUDED.external_debt,
        domestic_debt = EXCLUDED.domestic_debt,
        source        = EXCLUDED.source,
        updated_at    = now();`

	listObservationsSQL = `SELECT
        year,
        gdp::text,
        external_debt::text,
        domestic_debt::text,
        source,
        updated_at
    FROM debt_observations
    ORDER BY year;`

	countObservationsSQL = `SELECT COUNT(*) FROM debt_observations;`

	insertAlertSQL = `INSERT INTO leverage_alerts (
        year,
        debt_to_gdp,
        threshold,
        direction,
        channels
    ) VALUES (
        $1,$2::numeric,$3::numeric,$4,$5
    )
    ON CONFLICT (year) DO UPDATE
    SET debt_to_gdp = EXCLUDED.debt_to_gdp,
        threshold   = EXCLUDED.threshold,
        direction   = EXCLUDED.direction,
        channels    = EXCLUDED.channels
    RETURNING id, year, debt_to_gdp::text, threshold::text, direction, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        year,
        debt_to_gdp::text,
        threshold::text,
        direction,
        channels,
        created_at
    FROM leverage_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ObservationStore defines persistence of raw observations.
type ObservationStore interface {
	UpsertObservations(ctx context.Context, records []ObservationRecord) (int, error)
	ListObservations(ctx context.Context) ([]ObservationRecord, error)
	CountObservations(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to observations and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertObservations writes all records in one batch and returns how many were sent.
func (s *Store) UpsertObservations(ctx context.Context, records []ObservationRecord) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertObservationSQL,
			rec.Year,
			rec.GDP.String(),
			rec.ExternalDebt.String(),
			rec.DomesticDebt.String(),
			rec.Source,
		)
	}

	results := pool.SendBatch(ctx, batch)
	for _, rec := range records {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert observation %d: %w", rec.Year, execErr)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close upsert batch: %w", err)
	}
	return len(records), nil
}

// ListObservations lists all observations ordered by year.
func (s *Store) ListObservations(ctx context.Context) ([]ObservationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ObservationRecord, 0)
	for rows.Next() {
		rec, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountObservations counts stored observations.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission, one per year.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Year,
		alert.DebtToGDP.String(),
		alert.Threshold.String(),
		alert.Direction,
		alert.Channels,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanObservation(row pgx.Row) (ObservationRecord, error) {
	var rec ObservationRecord
	var gdpStr, extStr, domStr string
	if err := row.Scan(&rec.Year, &gdpStr, &extStr, &domStr, &rec.Source, &rec.UpdatedAt); err != nil {
		return ObservationRecord{}, err
	}

	var err error
	if rec.GDP, err = decimal.NewFromString(gdpStr); err != nil {
		return ObservationRecord{}, fmt.Errorf("parse gdp for %d: %w", rec.Year, err)
	}
	if rec.ExternalDebt, err = decimal.NewFromString(extStr); err != nil {
		return ObservationRecord{}, fmt.Errorf("parse external debt for %d: %w", rec.Year, err)
	}
	if rec.DomesticDebt, err = decimal.NewFromString(domStr); err != nil {
		return ObservationRecord{}, fmt.Errorf("parse domestic debt for %d: %w", rec.Year, err)
	}
	return rec, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var ratioStr, thresholdStr string
	if err := row.Scan(
		&rec.ID,
		&rec.Year,
		&ratioStr,
		&thresholdStr,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.DebtToGDP, err = decimal.NewFromString(ratioStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse debt to gdp: %w", err)
	}
	if rec.Threshold, err = decimal.NewFromString(thresholdStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold: %w", err)
	}
	return rec, nil
}

var (
	_ ObservationStore = (*Store)(nil)
	_ AlertStore       = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
