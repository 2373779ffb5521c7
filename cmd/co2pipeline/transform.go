package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lox/co2pipeline/internal/export"
	"github.com/lox/co2pipeline/internal/ingest"
	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/metrics"
	"github.com/lox/co2pipeline/internal/models"
	"github.com/lox/co2pipeline/internal/plot"
	"github.com/lox/co2pipeline/internal/report"
	"github.com/lox/co2pipeline/internal/store"
	"github.com/lox/co2pipeline/internal/transform"
)

type TransformCmd struct {
	Input  string `arg:"" env:"CO2_INPUT" help:"Input file path or http(s)://, ftp:// URL. .gz and .zst are decompressed."`
	Output string `short:"o" required:"" env:"CO2_OUTPUT" help:"Output path or file://, s3://, gs://, mem:// URL."`

	Delimiter    string        `default:"," env:"CO2_DELIMITER" help:"Field delimiter for input and output (\\t for tab)."`
	Encoding     string        `default:"utf-8" env:"CO2_ENCODING" help:"Text encoding for input and output."`
	Format       string        `enum:"csv,parquet," default:"" env:"CO2_FORMAT" help:"Output format. Inferred from the output extension when empty."`
	RetryTimeout time.Duration `default:"2m" env:"CO2_RETRY_TIMEOUT" help:"Give up retrying a remote input after this long."`

	MeasurementColumn string `default:"state" env:"CO2_MEASUREMENT_COLUMN" help:"Column holding the CO2 reading."`
	TimestampColumn   string `default:"last_changed" env:"CO2_TIMESTAMP_COLUMN" help:"Column holding the reading time."`
	Timezone          string `default:"Europe/London" env:"CO2_TIMEZONE" help:"IANA zone timestamps are converted to."`
	EMASpan           int    `name:"ema-span" default:"15" env:"CO2_EMA_SPAN" help:"Span of the exponential moving average."`

	Plot         string `env:"CO2_PLOT" help:"Write a PNG chart of the result to this path."`
	DB           string `name:"db" env:"CO2_DB" help:"Record the run and its readings in this SQLite database."`
	MetricsFile  string `env:"CO2_METRICS_FILE" help:"Write Prometheus metrics in textfile format to this path."`
	NarrativeOut string `env:"CO2_NARRATIVE_OUT" help:"Write an AI-generated air quality note to this path (needs OPENAI_API_KEY)."`
}

func (c *TransformCmd) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := logging.RunLogger(runID, c.Input)

	if c.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(c.MetricsFile); err != nil {
				log.Error("failed to write metrics", "error", err)
			}
		}()
	}

	delim, err := parseDelimiter(c.Delimiter)
	if err != nil {
		return err
	}

	opts := transform.Options{
		MeasurementColumn: c.MeasurementColumn,
		TimestampColumn:   c.TimestampColumn,
		Timezone:          c.Timezone,
		EMASpan:           c.EMASpan,
	}

	var st *store.Store
	var run *models.PipelineRun
	if c.DB != "" {
		st, err = store.Open(c.DB)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err = st.StartRun(runID, c.Input, c.Timezone, c.EMASpan)
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	}

	out, summary, err := c.execute(ctx, log, delim, opts, run)
	if st != nil {
		if out != nil {
			if err := saveReadings(st, out, opts, runID); err != nil {
				log.Error("failed to store readings", "error", err)
			}
		}
		recordOutcome(run, summary, err)
		if cerr := st.CompleteRun(run); cerr != nil {
			log.Error("failed to complete run record", "error", cerr)
		}
	}
	if err != nil {
		return err
	}

	if c.NarrativeOut != "" {
		c.writeNarrative(ctx, log, summary)
	}

	log.Info("run complete", "output", c.Output)
	return nil
}

// execute runs load, transform and write, then the optional summary and
// plot. The transformed table is returned whenever the pipeline succeeded.
func (c *TransformCmd) execute(ctx context.Context, log *slog.Logger, delim rune, opts transform.Options, run *models.PipelineRun) (*models.Table, *report.Summary, error) {
	loader := &ingest.Loader{Delimiter: delim, Encoding: c.Encoding, RetryTimeout: c.RetryTimeout}
	raw := loader.Load(ctx, c.Input)
	if raw == nil {
		return nil, nil, fmt.Errorf("no data loaded from %s", c.Input)
	}
	if run != nil {
		run.RowsIn = sql.NullInt64{Int64: int64(raw.Len()), Valid: true}
	}

	out, err := transform.NewPipeline(opts).Run(raw)
	if err != nil {
		return nil, nil, err
	}

	writer := &export.Writer{Delimiter: delim, Encoding: c.Encoding, Format: export.Format(c.Format)}
	if err := writer.Write(ctx, out, c.Output); err != nil {
		return out, nil, err
	}

	var summary *report.Summary
	if s, err := report.Summarize(out, opts.ReadingColumns()); err != nil {
		log.Warn("could not summarise output", "error", err)
	} else {
		summary = &s
		log.Info("run summary", s.LogArgs()...)
	}

	if c.Plot != "" {
		cols := opts.ReadingColumns()
		popts := plot.Options{TimeColumn: cols.ObservedAt, ValueColumn: cols.CO2PPM, EMAColumn: cols.EMA}
		if err := plot.WriteFile(out, popts, c.Plot); err != nil {
			return out, summary, fmt.Errorf("plot: %w", err)
		}
		log.Info("wrote chart", "path", c.Plot)
	}
	return out, summary, nil
}

func (c *TransformCmd) writeNarrative(ctx context.Context, log *slog.Logger, summary *report.Summary) {
	if summary == nil {
		return
	}
	narrator, err := report.NewNarrator()
	if errors.Is(err, report.ErrNoAPIKey) {
		log.Info("narrative disabled", "reason", err)
		return
	}
	if err != nil {
		log.Warn("narrative unavailable", "error", err)
		return
	}

	text, err := narrator.Narrate(ctx, *summary)
	if err != nil {
		log.Warn("narrative failed", "error", err)
		return
	}
	if err := os.WriteFile(c.NarrativeOut, []byte(text+"\n"), 0o644); err != nil {
		log.Warn("could not write narrative", "path", c.NarrativeOut, "error", err)
		return
	}
	log.Info("wrote narrative", "path", c.NarrativeOut)
}

func saveReadings(st *store.Store, out *models.Table, opts transform.Options, runID string) error {
	readings, err := models.ReadingsFromTable(out, opts.ReadingColumns(), runID)
	if err != nil {
		return err
	}
	return st.InsertReadings(readings)
}

func recordOutcome(run *models.PipelineRun, summary *report.Summary, err error) {
	if run == nil {
		return
	}
	if summary != nil {
		run.RowsOut = sql.NullInt64{Int64: int64(summary.Rows), Valid: true}
		run.RowsImputed = sql.NullInt64{Int64: int64(summary.Imputed), Valid: true}
		run.MeanPPM = sql.NullFloat64{Float64: summary.Mean, Valid: true}
		run.MaxPPM = sql.NullInt64{Int64: int64(summary.Max), Valid: true}
	}
	run.Success = err == nil
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
}

// parseDelimiter accepts a single character, or \t or "tab" for a tab.
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
