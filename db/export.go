package db

// export.go serializes whole tables for download. Each of the six tables
// can be written as CSV, and all of them together as an xlsx workbook with
// one sheet per table.

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportCSV writes the full contents of one application table to w as CSV,
// header row first. A table with no rows yields a header-only file. The
// table name is interpolated into the SQL text, which is safe only because
// it must come from the fixed schema table list; arbitrary names are
// rejected.
func (db *DB) ExportCSV(ctx context.Context, table string, w io.Writer) error {
	if !validTableName(table) {
		return fmt.Errorf("unknown table %q", table)
	}

	t, err := db.Query(ctx, "SELECT * FROM "+table)
	if err != nil {
		return fmt.Errorf("could not export table %q: %w", table, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv header write error: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv row write error: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportWorkbook builds an xlsx workbook with one sheet per application
// table. A table that fails to query is skipped and reported in the
// returned warnings; the remaining sheets are still produced.
func (db *DB) ExportWorkbook(ctx context.Context) (*excelize.File, []string, error) {
	f := excelize.NewFile()
	var warnings []string

	// The first exported table takes over the workbook's default sheet
	// rather than leaving an empty "Sheet1".
	renamed := false

	for _, table := range TableNames() {
		t, err := db.Query(ctx, "SELECT * FROM "+table)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not export %s: %v", table, err))
			continue
		}

		if !renamed {
			if err := f.SetSheetName("Sheet1", table); err != nil {
				return nil, warnings, fmt.Errorf("sheet rename error: %w", err)
			}
			renamed = true
		} else {
			if _, err := f.NewSheet(table); err != nil {
				return nil, warnings, fmt.Errorf("sheet create error: %w", err)
			}
		}

		header := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(table, "A1", &header); err != nil {
			return nil, warnings, fmt.Errorf("sheet header write error: %w", err)
		}
		for r, row := range t.Rows {
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = cellValue(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, warnings, fmt.Errorf("cell coordinate error: %w", err)
			}
			if err := f.SetSheetRow(table, cell, &cells); err != nil {
				return nil, warnings, fmt.Errorf("sheet row write error: %w", err)
			}
		}
	}
	return f, warnings, nil
}

// formatValue renders one scanned database value as a CSV field.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

// cellValue converts scanned values to types excelize writes natively,
// leaving numbers as numbers.
func cellValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return v
	}
}
