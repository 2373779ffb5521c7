package store

import (
	"database/sql"
	"time"

	"github.com/lox/co2pipeline/internal/models"
)

// StartRun records the start of a pipeline run and returns it.
func (s *Store) StartRun(runID, source, timezone string, emaSpan int) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		RunID:     runID,
		Source:    source,
		StartedAt: time.Now().UTC(),
		Timezone:  timezone,
		EMASpan:   emaSpan,
	}

	result, err := s.db.Exec(`
		INSERT INTO pipeline_runs (run_id, source, started_at, timezone, ema_span, success)
		VALUES (?, ?, ?, ?, ?, FALSE)
	`, run.RunID, run.Source, run.StartedAt, run.Timezone, run.EMASpan)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun stores the outcome of run.
func (s *Store) CompleteRun(run *models.PipelineRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE pipeline_runs SET
			finished_at = ?,
			rows_in = ?,
			rows_out = ?,
			rows_imputed = ?,
			mean_ppm = ?,
			max_ppm = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RowsIn, run.RowsOut, run.RowsImputed,
		run.MeanPPM, run.MaxPPM, run.Success, run.ErrorMessage, run.ID)
	return err
}

// GetRun returns the run with the given run ID, or nil if there is none.
func (s *Store) GetRun(runID string) (*models.PipelineRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, source, started_at, finished_at, timezone, ema_span,
			   rows_in, rows_out, rows_imputed, mean_ppm, max_ppm, success, error_message
		FROM pipeline_runs
		WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (s *Store) GetRecentRuns(limit int) ([]models.PipelineRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, source, started_at, finished_at, timezone, ema_span,
			   rows_in, rows_out, rows_imputed, mean_ppm, max_ppm, success, error_message
		FROM pipeline_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.PipelineRun, error) {
	var r models.PipelineRun
	err := row.Scan(&r.ID, &r.RunID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Timezone, &r.EMASpan,
		&r.RowsIn, &r.RowsOut, &r.RowsImputed, &r.MeanPPM, &r.MaxPPM, &r.Success, &r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
