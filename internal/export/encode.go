package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/text/transform"

	"github.com/lox/co2pipeline/internal/ingest"
	"github.com/lox/co2pipeline/internal/models"
)

// encodeCSV renders t with a header row, using delim between fields and
// encoding the text with the given label.
func encodeCSV(t *models.Table, delim rune, encoding string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if delim != 0 {
		w.Comma = delim
	}

	if err := w.Write(t.Names()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		if err := w.Write(t.Row(i)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return buf.Bytes(), nil
	}
	enc, err := ingest.LookupEncoding(encoding)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", encoding, err)
	}
	return out, nil
}

// parquetSchema builds one optional leaf per column. Group fields are stored
// in name order, which fixes the leaf column indexes.
func parquetSchema(t *models.Table) (*parquet.Schema, []string) {
	group := parquet.Group{}
	for _, col := range t.Columns() {
		var node parquet.Node
		switch col.Kind() {
		case models.KindInt:
			node = parquet.Int(64)
		case models.KindTime:
			node = parquet.Timestamp(parquet.Microsecond)
		case models.KindBool:
			node = parquet.Leaf(parquet.BooleanType)
		default:
			node = parquet.String()
		}
		group[col.Name()] = parquet.Optional(node)
	}

	order := t.Names()
	sort.Strings(order)
	return parquet.NewSchema("co2_readings", group), order
}

func encodeParquet(t *models.Table) ([]byte, error) {
	schema, order := parquetSchema(t)
	values := make([][]parquet.Value, len(order))
	for c, name := range order {
		col, _ := t.Column(name)
		values[c] = parquetValues(col, c)
	}

	rows := make([]parquet.Row, t.Len())
	for r := range rows {
		row := make(parquet.Row, len(values))
		for c := range values {
			row[c] = values[c][r]
		}
		rows[r] = row
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema)
	if _, err := w.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// parquetValues converts col to leveled values for leaf column index c.
// Null cells get definition level 0.
func parquetValues(col models.Column, c int) []parquet.Value {
	out := make([]parquet.Value, col.Len())
	switch col.Kind() {
	case models.KindInt:
		for r, v := range col.Ints() {
			if v.Valid {
				out[r] = parquet.Int64Value(v.Int64).Level(0, 1, c)
			} else {
				out[r] = parquet.NullValue().Level(0, 0, c)
			}
		}
	case models.KindTime:
		for r, v := range col.Times() {
			if v.Valid {
				out[r] = parquet.Int64Value(v.Time.UnixMicro()).Level(0, 1, c)
			} else {
				out[r] = parquet.NullValue().Level(0, 0, c)
			}
		}
	case models.KindBool:
		for r, v := range col.Bools() {
			out[r] = parquet.BooleanValue(v).Level(0, 1, c)
		}
	default:
		for r, v := range col.Strings() {
			if v.Valid {
				out[r] = parquet.ByteArrayValue([]byte(v.String)).Level(0, 1, c)
			} else {
				out[r] = parquet.NullValue().Level(0, 0, c)
			}
		}
	}
	return out
}
