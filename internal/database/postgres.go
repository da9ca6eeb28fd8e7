// Package database implements the optional Postgres sink for fetched
// readings and their hourly aggregates. The fetch core never requires
// it; it is wired in only when the database is enabled in configuration.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/gridwatch/psefetch/internal/models"
)

// GenerationSink is the persistence boundary for fetch output.
type GenerationSink interface {
	// BatchInsertRecords stores raw 15-minute readings in a single
	// transaction. Re-inserting an already stored reading is a no-op.
	BatchInsertRecords(ctx context.Context, records []models.Record) error

	// UpsertHourlyAggregates stores hourly means, replacing any previous
	// aggregate for the same (resource_code, hour).
	UpsertHourlyAggregates(ctx context.Context, aggs []models.HourlyAggregate) error

	// Close releases the underlying connection pool.
	Close() error
}

// PostgresSink implements GenerationSink on top of lib/pq.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens and verifies a connection.
func NewPostgresSink(connStr string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) BatchInsertRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO generation_readings
            (business_date, dtime_utc, resource_code, power_plant, operating_mode, gen_mw, cap_mw)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (resource_code, operating_mode, dtime_utc) DO NOTHING
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.BusinessDate,
			rec.Timestamp(),
			rec.ResourceCode,
			rec.PowerPlant,
			rec.OperatingMode,
			rec.GenerationMW,
			rec.CapacityMW,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresSink) UpsertHourlyAggregates(ctx context.Context, aggs []models.HourlyAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO hourly_generation
            (resource_code, power_plant, hour, avg_gen_mw, avg_cap_mw, sample_count)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (resource_code, hour) DO UPDATE
        SET power_plant  = EXCLUDED.power_plant,
            avg_gen_mw   = EXCLUDED.avg_gen_mw,
            avg_cap_mw   = EXCLUDED.avg_cap_mw,
            sample_count = EXCLUDED.sample_count
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, agg := range aggs {
		_, err := stmt.ExecContext(ctx,
			agg.ResourceCode,
			agg.PowerPlant,
			agg.Hour,
			agg.GenerationMW,
			agg.CapacityMW,
			agg.SampleCount,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert aggregate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Compile-time interface implementation check
var _ GenerationSink = (*PostgresSink)(nil)
