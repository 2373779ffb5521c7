package transform

import (
	"database/sql"
	"math"
	"sort"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

const stageFill = "fill_nulls"

// ImputedColumn names the flag column FillNulls adds for column.
func ImputedColumn(column string) string { return column + "_imputed" }

// FillNulls adds <column>_imputed marking null cells, then fills them by
// linear interpolation on row position. Leading and trailing nulls take the
// nearest known value. If any null survives (an all-null column has no
// neighbours) the result is discarded and a *NullsError returned.
func FillNulls(t *models.Table, column string) (*models.Table, error) {
	vals, err := requireInts(t, stageFill, column)
	if err != nil {
		return nil, err
	}
	log := logging.Component("transform")

	flags := make([]bool, len(vals))
	for i, v := range vals {
		flags[i] = !v.Valid
	}

	out, err := t.WithColumn(models.BoolColumn(ImputedColumn(column), flags))
	if err != nil {
		return nil, err
	}
	out, err = out.WithColumn(models.IntColumn(column, interpolate(vals)))
	if err != nil {
		return nil, err
	}

	check, err := out.Select(column)
	if err != nil {
		return nil, err
	}
	if err := ValidateNoNulls(check); err != nil {
		log.Error("null validation failed after interpolation", "stage", stageFill, "column", column, "error", err)
		return nil, err
	}

	log.Info("filled nulls by interpolation",
		"stage", stageFill, "column", column, "flag_column", ImputedColumn(column), "imputed", countTrue(flags))
	return out, nil
}

// interpolate fills interior gaps on the straight line between the known
// neighbours and edge gaps with the nearest known value. With no known
// values the input is returned unchanged.
func interpolate(vals []sql.NullInt64) []sql.NullInt64 {
	out := make([]sql.NullInt64, len(vals))
	copy(out, vals)

	var known []int
	for i, v := range vals {
		if v.Valid {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return out
	}

	for i, v := range vals {
		if v.Valid {
			continue
		}
		k := sort.SearchInts(known, i)
		switch {
		case k == 0:
			out[i] = vals[known[0]]
		case k == len(known):
			out[i] = vals[known[len(known)-1]]
		default:
			lo, hi := known[k-1], known[k]
			x0, x1 := float64(vals[lo].Int64), float64(vals[hi].Int64)
			f := x0 + (x1-x0)*float64(i-lo)/float64(hi-lo)
			out[i] = models.IntValue(int64(math.RoundToEven(f)))
		}
	}
	return out
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
