package transform

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

const (
	stageDatetime = "convert_to_datetime"

	// DefaultTimezone is the zone timestamps are converted to.
	DefaultTimezone = "Europe/London"
)

// timestampLayouts are tried in order. Layouts without a zone parse as UTC,
// which is how naive timestamps are labeled before conversion.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ConvertToDatetime replaces column with timestamps converted to timezone
// (DefaultTimezone when empty). Unparseable cells become null.
func ConvertToDatetime(t *models.Table, column, timezone string) (*models.Table, error) {
	col, err := requireColumn(t, stageDatetime, column)
	if err != nil {
		return nil, err
	}

	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		err = fmt.Errorf("%s: load timezone %q: %w", stageDatetime, timezone, err)
		logging.Component("transform").Error("invalid timezone", "stage", stageDatetime, "error", err)
		return nil, err
	}

	vals := make([]sql.NullTime, col.Len())
	if col.Kind() == models.KindTime {
		for i, v := range col.Times() {
			if v.Valid {
				vals[i] = models.TimeValue(v.Time.In(loc))
			}
		}
	} else {
		for i := range vals {
			if col.IsNull(i) {
				continue
			}
			if ts, ok := parseTimestamp(col.Format(i)); ok {
				vals[i] = models.TimeValue(ts.In(loc))
			}
		}
	}

	out, err := t.WithColumn(models.TimeColumn(column, vals))
	if err != nil {
		return nil, err
	}

	logging.Component("transform").Info("converted column to datetime",
		"stage", stageDatetime, "column", column, "timezone", timezone, "nulls", out.NullCounts()[column])
	return out, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
