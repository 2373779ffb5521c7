package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Reading is one transformed sensor row as persisted in the run database.
type Reading struct {
	RunID      string
	RowIndex   int
	EntityID   sql.NullString
	CO2PPM     sql.NullInt64
	Imputed    bool
	EMA        sql.NullInt64
	ObservedAt sql.NullTime
}

// ReadingColumns names the table columns a Reading is built from.
type ReadingColumns struct {
	EntityID   string
	CO2PPM     string
	Imputed    string
	EMA        string
	ObservedAt string
}

// DefaultReadingColumns matches the transformed output schema.
func DefaultReadingColumns() ReadingColumns {
	return ReadingColumns{
		EntityID:   "entity_id",
		CO2PPM:     "co2_ppm",
		Imputed:    "state_imputed",
		EMA:        "15_point_ema",
		ObservedAt: "last_changed",
	}
}

// ReadingsFromTable extracts readings from a transformed table. The entity
// and timestamp columns may be absent; the measurement, flag and EMA columns
// must be present with the types the pipeline produces.
func ReadingsFromTable(t *Table, cols ReadingColumns, runID string) ([]Reading, error) {
	ppm, err := typedColumn(t, cols.CO2PPM, KindInt)
	if err != nil {
		return nil, err
	}
	flags, err := typedColumn(t, cols.Imputed, KindBool)
	if err != nil {
		return nil, err
	}
	ema, err := typedColumn(t, cols.EMA, KindInt)
	if err != nil {
		return nil, err
	}

	ppmVals, flagVals, emaVals := ppm.Ints(), flags.Bools(), ema.Ints()

	var entities []sql.NullString
	if c, ok := t.Column(cols.EntityID); ok {
		entities = make([]sql.NullString, c.Len())
		for i := range entities {
			if !c.IsNull(i) {
				entities[i] = sql.NullString{String: c.Format(i), Valid: true}
			}
		}
	}

	var times []sql.NullTime
	if c, ok := t.Column(cols.ObservedAt); ok && c.Kind() == KindTime {
		times = c.Times()
	}

	readings := make([]Reading, t.Len())
	for i := range readings {
		r := Reading{
			RunID:    runID,
			RowIndex: i,
			CO2PPM:   ppmVals[i],
			Imputed:  flagVals[i],
			EMA:      emaVals[i],
		}
		if entities != nil {
			r.EntityID = entities[i]
		}
		if times != nil {
			r.ObservedAt = times[i]
		}
		readings[i] = r
	}
	return readings, nil
}

func typedColumn(t *Table, name string, kind Kind) (Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return Column{}, fmt.Errorf("column %q not found", name)
	}
	if c.Kind() != kind {
		return Column{}, fmt.Errorf("column %q is %s, want %s", name, c.Kind(), kind)
	}
	return c, nil
}

// PipelineRun is the audit record of one transform invocation.
type PipelineRun struct {
	ID           int64
	RunID        string
	Source       string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Timezone     string
	EMASpan      int
	RowsIn       sql.NullInt64
	RowsOut      sql.NullInt64
	RowsImputed  sql.NullInt64
	MeanPPM      sql.NullFloat64
	MaxPPM       sql.NullInt64
	Success      bool
	ErrorMessage sql.NullString
}
