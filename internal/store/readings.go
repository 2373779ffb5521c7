package store

import (
	"database/sql"
	"fmt"

	"github.com/lox/co2pipeline/internal/models"
)

// InsertReadings stores readings in one transaction. Rows already stored for
// the same run and row index are replaced.
func (s *Store) InsertReadings(readings []models.Reading) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO readings (run_id, row_index, entity_id, co2_ppm, imputed, ema, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, row_index) DO UPDATE SET
			entity_id = excluded.entity_id,
			co2_ppm = excluded.co2_ppm,
			imputed = excluded.imputed,
			ema = excluded.ema,
			observed_at = excluded.observed_at
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		observed := r.ObservedAt
		if observed.Valid {
			observed.Time = observed.Time.UTC()
		}
		if _, err := stmt.Exec(r.RunID, r.RowIndex, r.EntityID, r.CO2PPM, r.Imputed, r.EMA, observed); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert reading %d: %w", r.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit readings: %w", err)
	}
	return nil
}

// GetReadings returns the readings stored for runID in row order. Timestamps
// come back in UTC.
func (s *Store) GetReadings(runID string) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT run_id, row_index, entity_id, co2_ppm, imputed, ema, observed_at
		FROM readings
		WHERE run_id = ?
		ORDER BY row_index ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var observed sql.NullTime
		if err := rows.Scan(&r.RunID, &r.RowIndex, &r.EntityID, &r.CO2PPM, &r.Imputed, &r.EMA, &observed); err != nil {
			return nil, err
		}
		if observed.Valid {
			observed.Time = observed.Time.UTC()
		}
		r.ObservedAt = observed
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
