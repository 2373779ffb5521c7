package plot

import (
	"bytes"
	"database/sql"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/co2pipeline/internal/models"
	"github.com/lox/co2pipeline/internal/transform"
)

func chartTable(n int) *models.Table {
	start := time.Date(2024, 3, 1, 9, 40, 0, 0, time.UTC)
	times := make([]sql.NullTime, n)
	ppm := make([]sql.NullInt64, n)
	ema := make([]sql.NullInt64, n)
	for i := 0; i < n; i++ {
		times[i] = models.TimeValue(start.Add(time.Duration(i) * 5 * time.Minute))
		ppm[i] = models.IntValue(int64(420 + (i%7)*15))
		ema[i] = models.IntValue(int64(430 + i))
	}
	return models.MustTable(
		models.IntColumn("co2_ppm", ppm),
		models.IntColumn("15_point_ema", ema),
		models.TimeColumn("last_changed", times),
	)
}

func TestRenderProducesPNG(t *testing.T) {
	data, err := Render(chartTable(40), Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1200 || b.Dy() != 600 {
		t.Errorf("size = %dx%d, want 1200x600", b.Dx(), b.Dy())
	}
}

func TestRenderSinglePoint(t *testing.T) {
	data, err := Render(chartTable(1), Options{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("size = %dx%d, want 400x300", b.Dx(), b.Dy())
	}
}

func TestRenderMissingColumn(t *testing.T) {
	tbl := chartTable(3)
	for _, name := range []string{"last_changed", "co2_ppm", "15_point_ema"} {
		t.Run(name, func(t *testing.T) {
			names := []string{}
			for _, n := range tbl.Names() {
				if n != name {
					names = append(names, n)
				}
			}
			partial, err := tbl.Select(names...)
			if err != nil {
				t.Fatal(err)
			}

			_, err = Render(partial, Options{})
			var colErr *transform.ColumnError
			if !errors.As(err, &colErr) || colErr.Column != name {
				t.Fatalf("err = %v, want ColumnError for %s", err, name)
			}
		})
	}
}

func TestRenderNoTimestamps(t *testing.T) {
	tbl := models.MustTable(
		models.IntColumn("co2_ppm", []sql.NullInt64{models.IntValue(400)}),
		models.IntColumn("15_point_ema", []sql.NullInt64{models.IntValue(400)}),
		models.TimeColumn("last_changed", []sql.NullTime{{}}),
	)
	if _, err := Render(tbl, Options{}); !errors.Is(err, ErrNothingToPlot) {
		t.Errorf("err = %v, want ErrNothingToPlot", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co2.png")
	if err := WriteFile(chartTable(10), Options{}, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("decode: %v", err)
	}
}

func TestNiceStep(t *testing.T) {
	tests := []struct {
		raw, want float64
	}{
		{0.7, 1},
		{13, 20},
		{42, 50},
		{180, 200},
		{600, 1000},
	}
	for _, tt := range tests {
		if got := niceStep(tt.raw); got != tt.want {
			t.Errorf("niceStep(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
