// Package ingest loads delimited text into a models.Table.
package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lox/co2pipeline/internal/httputil"
	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/metrics"
	"github.com/lox/co2pipeline/internal/models"
)

const stageLoad = "load"

var (
	ErrEmptyInput        = errors.New("no columns to parse from input")
	ErrUnknownEncoding   = errors.New("unknown encoding")
	ErrUnsupportedScheme = errors.New("unsupported location scheme")
)

// naTokens are the cell values read as null.
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// Loader reads one delimited text source. The zero value reads
// comma-separated UTF-8.
type Loader struct {
	Delimiter    rune
	Encoding     string
	Client       *http.Client
	RetryTimeout time.Duration
}

func (l *Loader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return httputil.NewClient()
}

// Load reads location into a table of string columns. Any failure is logged
// and reported as a nil table.
func (l *Loader) Load(ctx context.Context, location string) *models.Table {
	log := logging.Component("ingest")
	start := time.Now()
	t, err := l.LoadTable(ctx, location)
	metrics.StageDuration.WithLabelValues(stageLoad).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(stageLoad).Inc()
		log.Error("failed to load data", "location", location, "error", err)
		return nil
	}
	log.Info("loaded data", "location", location, "rows", t.Len(), "columns", t.Names())
	return t
}

// LoadTable is Load with the failure returned.
func (l *Loader) LoadTable(ctx context.Context, location string) (*models.Table, error) {
	raw, name, err := l.read(ctx, location)
	if err != nil {
		return nil, err
	}
	raw, err = decompress(name, raw)
	if err != nil {
		return nil, err
	}
	text, err := decodeText(l.Encoding, raw)
	if err != nil {
		return nil, err
	}
	return l.parse(text)
}

// read returns the raw bytes at location and the path used to detect
// compression.
func (l *Loader) read(ctx context.Context, location string) ([]byte, string, error) {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", location, err)
		}
		return data, location, nil
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", u.Path, err)
		}
		return data, u.Path, nil
	case "http", "https":
		data, err := l.fetchHTTP(ctx, location)
		return data, u.Path, err
	case "ftp":
		data, err := fetchFTP(ctx, u)
		return data, u.Path, err
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (l *Loader) parse(text []byte) (*models.Table, error) {
	r := csv.NewReader(bytes.NewReader(text))
	if l.Delimiter != 0 {
		r.Comma = l.Delimiter
	}
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	names := headerNames(header)

	cells := make([][]sql.NullString, len(names))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		if len(record) > len(names) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("parse: line %d: expected %d fields, saw %d", line, len(names), len(record))
		}
		for i := range names {
			var v sql.NullString
			if i < len(record) && !naTokens[record[i]] {
				v = models.StringValue(record[i])
			}
			cells[i] = append(cells[i], v)
		}
	}

	cols := make([]models.Column, len(names))
	for i, name := range names {
		cols[i] = models.StringColumn(name, cells[i])
	}
	return models.NewTable(cols...)
}

// headerNames names blank headers "Unnamed: i" and suffixes repeats with
// ".1", ".2" and so on.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			repeats[h]++
			name = h + "." + strconv.Itoa(repeats[h])
		}
		used[name] = true
		names[i] = name
	}
	return names
}
