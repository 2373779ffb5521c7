package models

import (
	"database/sql"
	"reflect"
	"testing"
	"time"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		StringColumn("entity_id", []sql.NullString{StringValue("sensor.co2"), StringValue("sensor.co2")}),
		IntColumn("state", []sql.NullInt64{IntValue(410), {}}),
		BoolColumn("state_imputed", []bool{false, true}),
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestNewTableRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
	}{
		{
			name: "length mismatch",
			cols: []Column{
				StringColumn("a", []sql.NullString{StringValue("x")}),
				StringColumn("b", nil),
			},
		},
		{
			name: "duplicate name",
			cols: []Column{
				StringColumn("a", nil),
				IntColumn("a", nil),
			},
		},
		{
			name: "empty name",
			cols: []Column{StringColumn("", nil)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.cols...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestWithColumnReplacesInPlaceOrAppends(t *testing.T) {
	tbl := sampleTable(t)

	replaced, err := tbl.WithColumn(IntColumn("state", []sql.NullInt64{IntValue(1), IntValue(2)}))
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if got, want := replaced.Names(), []string{"entity_id", "state", "state_imputed"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	appended, err := tbl.WithColumn(IntColumn("15_point_ema", []sql.NullInt64{IntValue(1), IntValue(2)}))
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if got, want := appended.Names(), []string{"entity_id", "state", "state_imputed", "15_point_ema"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if _, err := tbl.WithColumn(IntColumn("short", []sql.NullInt64{IntValue(1)})); err == nil {
		t.Error("expected row count error")
	}
}

func TestTableOperationsDoNotAlias(t *testing.T) {
	tbl := sampleTable(t)

	col, _ := tbl.Column("state")
	vals := col.Ints()
	vals[0] = IntValue(999)

	again, _ := tbl.Column("state")
	if again.Ints()[0].Int64 != 410 {
		t.Errorf("mutating accessor copy changed table: got %d", again.Ints()[0].Int64)
	}

	if _, err := tbl.WithColumn(IntColumn("state", []sql.NullInt64{IntValue(1), IntValue(2)})); err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	orig, _ := tbl.Column("state")
	if orig.Ints()[0].Int64 != 410 {
		t.Error("WithColumn modified the receiver")
	}
}

func TestRename(t *testing.T) {
	tbl := sampleTable(t)

	renamed, err := tbl.Rename("state", "co2_ppm")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got, want := renamed.Names(), []string{"entity_id", "co2_ppm", "state_imputed"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if !tbl.Has("state") {
		t.Error("Rename modified the receiver")
	}

	if _, err := tbl.Rename("missing", "x"); err == nil {
		t.Error("expected error renaming missing column")
	}
	if _, err := tbl.Rename("state", "entity_id"); err == nil {
		t.Error("expected error renaming onto existing column")
	}
}

func TestReorder(t *testing.T) {
	tbl := MustTable(
		StringColumn("c", nil),
		StringColumn("a", nil),
		StringColumn("extra", nil),
		StringColumn("b", nil),
	)

	got := tbl.Reorder("a", "b", "missing", "c").Names()
	want := []string{"a", "b", "c", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reorder() = %v, want %v", got, want)
	}
}

func TestNullCountsAndFormat(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	ts := time.Date(2024, 7, 1, 9, 30, 0, 0, london)

	tbl := MustTable(
		IntColumn("n", []sql.NullInt64{IntValue(5), {}}),
		TimeColumn("ts", []sql.NullTime{TimeValue(ts), {}}),
		BoolColumn("flag", []bool{true, false}),
	)

	counts := tbl.NullCounts()
	if counts["n"] != 1 || counts["ts"] != 1 {
		t.Errorf("NullCounts() = %v", counts)
	}
	if _, ok := counts["flag"]; ok {
		t.Error("bool column should never report nulls")
	}

	if got, want := tbl.Row(0), []string{"5", "2024-07-01 09:30:00+01:00", "True"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Row(0) = %q, want %q", got, want)
	}
	if got, want := tbl.Row(1), []string{"", "", "False"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Row(1) = %q, want %q", got, want)
	}
}

func TestReadingsFromTable(t *testing.T) {
	ts := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	tbl := MustTable(
		StringColumn("entity_id", []sql.NullString{StringValue("sensor.co2")}),
		IntColumn("co2_ppm", []sql.NullInt64{IntValue(420)}),
		BoolColumn("state_imputed", []bool{true}),
		IntColumn("15_point_ema", []sql.NullInt64{IntValue(418)}),
		TimeColumn("last_changed", []sql.NullTime{TimeValue(ts)}),
	)

	readings, err := ReadingsFromTable(tbl, DefaultReadingColumns(), "run-1")
	if err != nil {
		t.Fatalf("ReadingsFromTable: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("len(readings) = %d, want 1", len(readings))
	}
	r := readings[0]
	if r.RunID != "run-1" || r.EntityID.String != "sensor.co2" || r.CO2PPM.Int64 != 420 || !r.Imputed || r.EMA.Int64 != 418 || !r.ObservedAt.Time.Equal(ts) {
		t.Errorf("unexpected reading: %+v", r)
	}

	raw := MustTable(StringColumn("co2_ppm", []sql.NullString{StringValue("420")}))
	if _, err := ReadingsFromTable(raw, DefaultReadingColumns(), "run-2"); err == nil {
		t.Error("expected error for untransformed table")
	}
}
