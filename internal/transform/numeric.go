package transform

import (
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

const stageNumeric = "convert_to_numeric"

// ConvertToNumeric replaces column with nullable integers. Cells that do not
// parse as numbers become null; fractional values round half to even.
func ConvertToNumeric(t *models.Table, column string) (*models.Table, error) {
	col, err := requireColumn(t, stageNumeric, column)
	if err != nil {
		return nil, err
	}

	vals := make([]sql.NullInt64, col.Len())
	switch col.Kind() {
	case models.KindInt:
		vals = col.Ints()
	case models.KindBool:
		for i, b := range col.Bools() {
			if b {
				vals[i] = models.IntValue(1)
			} else {
				vals[i] = models.IntValue(0)
			}
		}
	default:
		for i := range vals {
			if col.IsNull(i) {
				continue
			}
			if v, ok := parseInteger(col.Format(i)); ok {
				vals[i] = models.IntValue(v)
			}
		}
	}

	out, err := t.WithColumn(models.IntColumn(column, vals))
	if err != nil {
		return nil, err
	}

	logging.Component("transform").Info("converted column to nullable int64",
		"stage", stageNumeric, "column", column, "nulls", out.NullCounts()[column])
	return out, nil
}

func parseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.RoundToEven(f)
	if r < math.MinInt64 || r >= math.MaxInt64 {
		return 0, false
	}
	return int64(r), true
}
