package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/lox/co2pipeline/internal/models"
	"github.com/lox/co2pipeline/internal/store"
)

type RunsCmd struct {
	DB    string `name:"db" default:"co2pipeline.db" env:"CO2_DB" help:"SQLite database written by transform --db."`
	Limit int    `default:"20" help:"Number of runs to show."`
}

func (c *RunsCmd) Run() error {
	st, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.GetRecentRuns(c.Limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	return printRuns(os.Stdout, runs)
}

func printRuns(w io.Writer, runs []models.PipelineRun) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSOURCE\tROWS\tIMPUTED\tMEAN\tMAX\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "failed"
			if r.ErrorMessage.Valid {
				status += ": " + r.ErrorMessage.String
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Source,
			nullInt(r.RowsOut),
			nullInt(r.RowsImputed),
			nullFloat(r.MeanPPM),
			nullInt(r.MaxPPM),
			status,
		)
	}
	return tw.Flush()
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'f', 1, 64)
}
