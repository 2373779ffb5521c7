package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/co2pipeline/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", version, len(migrations))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != len(migrations) {
		t.Errorf("schema_migrations rows = %d, want %d", count, len(migrations))
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.StartRun("run-1", "in.csv", "UTC", 15); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	run, err := reopened.GetRun("run-1")
	if err != nil || run == nil {
		t.Fatalf("GetRun after reopen = %v, %v", run, err)
	}
}

func TestRun_StartAndComplete(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartRun("6f1c", "data/co2.csv", "Europe/London", 15)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == 0 {
		t.Error("run.ID should be set")
	}

	run.RowsIn = sql.NullInt64{Int64: 100, Valid: true}
	run.RowsOut = sql.NullInt64{Int64: 100, Valid: true}
	run.RowsImputed = sql.NullInt64{Int64: 3, Valid: true}
	run.MeanPPM = sql.NullFloat64{Float64: 612.5, Valid: true}
	run.MaxPPM = sql.NullInt64{Int64: 1450, Valid: true}
	run.Success = true

	if err := store.CompleteRun(run); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	got, err := store.GetRun("6f1c")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if !got.Success {
		t.Error("Success = false, want true")
	}
	if got.Source != "data/co2.csv" || got.Timezone != "Europe/London" || got.EMASpan != 15 {
		t.Errorf("run = %+v", got)
	}
	if got.RowsImputed.Int64 != 3 || got.MaxPPM.Int64 != 1450 {
		t.Errorf("RowsImputed = %v, MaxPPM = %v", got.RowsImputed, got.MaxPPM)
	}
	if got.MeanPPM.Float64 != 612.5 {
		t.Errorf("MeanPPM = %v, want 612.5", got.MeanPPM)
	}
	if !got.FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}
	if got.ErrorMessage.Valid {
		t.Errorf("ErrorMessage = %q, want null", got.ErrorMessage.String)
	}
}

func TestGetRecentRuns(t *testing.T) {
	store := setupTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		run, err := store.StartRun(id, id+".csv", "UTC", 15)
		if err != nil {
			t.Fatal(err)
		}
		run.ErrorMessage = sql.NullString{String: "convert_to_numeric: column 'state' not found in table", Valid: id == "b"}
		run.Success = id != "b"
		if err := store.CompleteRun(run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.GetRecentRuns(2)
	if err != nil {
		t.Fatalf("GetRecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Errorf("order = %s, %s; want c, b", runs[0].RunID, runs[1].RunID)
	}
	if runs[1].Success || !runs[1].ErrorMessage.Valid {
		t.Errorf("failed run = %+v", runs[1])
	}
}

func TestGetRun_NoData(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.GetRun("missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run != nil {
		t.Errorf("GetRun = %+v, want nil", run)
	}
}

func TestInsertAndGetReadings(t *testing.T) {
	store := setupTestStore(t)

	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatal(err)
	}
	observed := time.Date(2024, 7, 1, 11, 0, 0, 0, london)

	readings := []models.Reading{
		{
			RunID:      "r1",
			RowIndex:   0,
			EntityID:   sql.NullString{String: "sensor.co2", Valid: true},
			CO2PPM:     sql.NullInt64{Int64: 412, Valid: true},
			EMA:        sql.NullInt64{Int64: 412, Valid: true},
			ObservedAt: sql.NullTime{Time: observed, Valid: true},
		},
		{
			RunID:    "r1",
			RowIndex: 1,
			CO2PPM:   sql.NullInt64{Int64: 420, Valid: true},
			Imputed:  true,
			EMA:      sql.NullInt64{Int64: 413, Valid: true},
		},
	}

	if err := store.InsertReadings(readings); err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}
	// Replaying the same rows must not duplicate them.
	if err := store.InsertReadings(readings); err != nil {
		t.Fatalf("InsertReadings replay: %v", err)
	}

	got, err := store.GetReadings("r1")
	if err != nil {
		t.Fatalf("GetReadings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].ObservedAt.Valid || !got[0].ObservedAt.Time.Equal(observed) {
		t.Errorf("ObservedAt = %v, want %v", got[0].ObservedAt, observed)
	}
	if got[0].EntityID.String != "sensor.co2" || got[0].CO2PPM.Int64 != 412 {
		t.Errorf("reading 0 = %+v", got[0])
	}
	if !got[1].Imputed || got[1].EntityID.Valid || got[1].ObservedAt.Valid {
		t.Errorf("reading 1 = %+v", got[1])
	}
}
