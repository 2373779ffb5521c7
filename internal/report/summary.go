// Package report summarises a transformed table.
package report

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/co2pipeline/internal/models"
)

// HighCO2Threshold is the level above which indoor air is considered stuffy.
const HighCO2Threshold = 1000

// Summary describes the measurement column of one run.
type Summary struct {
	Rows      int
	Imputed   int
	Mean      float64
	StdDev    float64
	Min       float64
	Max       float64
	Median    float64
	P95       float64
	ShareHigh float64 // fraction of readings above HighCO2Threshold
	First     time.Time
	Last      time.Time
}

// Summarize computes statistics over the measurement column named in cols.
// The imputed and timestamp columns are optional.
func Summarize(t *models.Table, cols models.ReadingColumns) (Summary, error) {
	col, ok := t.Column(cols.CO2PPM)
	if !ok {
		return Summary{}, fmt.Errorf("summarize: column '%s' not found in table", cols.CO2PPM)
	}
	if col.Kind() != models.KindInt {
		return Summary{}, fmt.Errorf("summarize: column '%s' is %s, want %s", cols.CO2PPM, col.Kind(), models.KindInt)
	}

	var data []float64
	for _, v := range col.Ints() {
		if v.Valid {
			data = append(data, float64(v.Int64))
		}
	}

	s := Summary{Rows: t.Len()}
	if flags, ok := t.Column(cols.Imputed); ok && flags.Kind() == models.KindBool {
		for _, f := range flags.Bools() {
			if f {
				s.Imputed++
			}
		}
	}
	if ts, ok := t.Column(cols.ObservedAt); ok && ts.Kind() == models.KindTime {
		for _, v := range ts.Times() {
			if !v.Valid {
				continue
			}
			if s.First.IsZero() || v.Time.Before(s.First) {
				s.First = v.Time
			}
			if s.Last.IsZero() || v.Time.After(s.Last) {
				s.Last = v.Time
			}
		}
	}
	if len(data) == 0 {
		return s, nil
	}

	s.Mean = stat.Mean(data, nil)
	if len(data) > 1 {
		s.StdDev = stat.StdDev(data, nil)
	}
	s.Min = floats.Min(data)
	s.Max = floats.Max(data)

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	high := 0
	for _, v := range data {
		if v > HighCO2Threshold {
			high++
		}
	}
	s.ShareHigh = float64(high) / float64(len(data))
	return s, nil
}

// LogArgs lists the summary as slog key-value pairs.
func (s Summary) LogArgs() []any {
	args := []any{
		"rows", s.Rows,
		"imputed", s.Imputed,
		"mean_ppm", fmt.Sprintf("%.1f", s.Mean),
		"stddev_ppm", fmt.Sprintf("%.1f", s.StdDev),
		"min_ppm", s.Min,
		"median_ppm", s.Median,
		"p95_ppm", s.P95,
		"max_ppm", s.Max,
		"share_above_1000", fmt.Sprintf("%.3f", s.ShareHigh),
	}
	if !s.First.IsZero() {
		args = append(args, "first", s.First, "last", s.Last)
	}
	return args
}
