package transform

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

const (
	stageEMA = "add_ema"

	DefaultMeasurementColumn = "state"
	DefaultEMASpan           = 15
)

// EMAColumn names the column AddEMA writes for span.
func EMAColumn(span int) string { return fmt.Sprintf("%d_point_ema", span) }

// AddEMA appends <span>_point_ema holding the rounded exponential moving
// average of column (DefaultMeasurementColumn when empty) with
// alpha = 2/(span+1). The average is the plain recursive form, without
// bias correction: ema[0] = x[0], ema[i] = alpha*x[i] + (1-alpha)*ema[i-1].
//
// FillNulls must have run first. Null inputs are skipped and repeat the
// previous average.
func AddEMA(t *models.Table, column string, span int) (*models.Table, error) {
	if column == "" {
		column = DefaultMeasurementColumn
	}
	if span < 1 {
		err := fmt.Errorf("%s: span %d: %w", stageEMA, span, ErrInvalidSpan)
		logging.Component("transform").Error("invalid span", "stage", stageEMA, "error", err)
		return nil, err
	}
	vals, err := requireInts(t, stageEMA, column)
	if err != nil {
		return nil, err
	}

	name := EMAColumn(span)
	out, err := t.WithColumn(models.IntColumn(name, ema(vals, span)))
	if err != nil {
		return nil, err
	}

	logging.Component("transform").Info("added EMA column",
		"stage", stageEMA, "column", name, "span", span, "source", column)
	return out, nil
}

func ema(vals []sql.NullInt64, span int) []sql.NullInt64 {
	alpha := 2.0 / (float64(span) + 1)
	out := make([]sql.NullInt64, len(vals))

	var avg float64
	seeded := false
	for i, v := range vals {
		if v.Valid {
			x := float64(v.Int64)
			if !seeded {
				avg = x
				seeded = true
			} else {
				avg = alpha*x + (1-alpha)*avg
			}
		}
		if seeded {
			out[i] = models.IntValue(int64(math.RoundToEven(avg)))
		}
	}
	return out
}
