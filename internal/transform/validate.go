package transform

import (
	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/models"
)

// ValidateNoNulls returns a *NullsError naming every column of t that holds
// at least one null, with its count. Pass a Select of t to check a subset.
func ValidateNoNulls(t *models.Table) error {
	var found []NullCount
	for _, col := range t.Columns() {
		if n := col.NullCount(); n > 0 {
			found = append(found, NullCount{Column: col.Name(), Count: n})
		}
	}
	if len(found) == 0 {
		return nil
	}

	err := &NullsError{Columns: found}
	logging.Component("validate").Error("validation failed", "error", err)
	return err
}
