package transform

import (
	"database/sql"
	"fmt"

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

// requireColumn looks up name and logs a precondition failure when absent.
func requireColumn(t *models.Table, stage, name string) (models.Column, error) {
	if t == nil {
		return models.Column{}, ErrNoData
	}
	col, ok := t.Column(name)
	if !ok {
		err := &ColumnError{Stage: stage, Column: name}
		logging.Component("transform").Error("precondition failed", "stage", stage, "column", name, "error", err)
		return models.Column{}, err
	}
	return col, nil
}

// requireInts looks up an integer column produced by ConvertToNumeric.
func requireInts(t *models.Table, stage, name string) ([]sql.NullInt64, error) {
	col, err := requireColumn(t, stage, name)
	if err != nil {
		return nil, err
	}
	if col.Kind() != models.KindInt {
		err := fmt.Errorf("%s: column '%s' is %s, want %s: %w", stage, name, col.Kind(), models.KindInt, ErrColumnType)
		logging.Component("transform").Error("precondition failed", "stage", stage, "column", name, "error", err)
		return nil, err
	}
	return col.Ints(), nil
}
