package transform

import (
	"fmt"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

const (
	stageRename = "rename_and_reorder"

	DefaultTimestampColumn = "last_changed"
	EntityColumn           = "entity_id"
	OutputMeasurement      = "co2_ppm"
)

// RenameAndReorder renames state to co2_ppm and orders the columns as
// entity_id, co2_ppm, state_imputed, 15_point_ema, last_changed, followed by
// any other columns in their original order.
func RenameAndReorder(t *models.Table) (*models.Table, error) {
	return renameAndReorder(t, DefaultOptions())
}

func renameAndReorder(t *models.Table, opts Options) (*models.Table, error) {
	if _, err := requireColumn(t, stageRename, opts.MeasurementColumn); err != nil {
		return nil, err
	}

	renamed, err := t.Rename(opts.MeasurementColumn, OutputMeasurement)
	if err != nil {
		err = fmt.Errorf("%s: %w", stageRename, err)
		logging.Component("transform").Error("rename failed", "stage", stageRename, "error", err)
		return nil, err
	}

	out := renamed.Reorder(opts.OutputColumns()...)
	logging.Component("transform").Info("renamed and reordered columns",
		"stage", stageRename, "from", opts.MeasurementColumn, "to", OutputMeasurement, "columns", out.Names())
	return out, nil
}
