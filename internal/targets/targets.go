// Package targets loads (school, program) pairs from CSV and XLSX files for batch extraction.
package targets

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-research/internal/model"
)

// ErrMissingColumns is returned when a file header lacks a school or program column.
var ErrMissingColumns = eris.New("targets: header must contain school and program columns")

var (
	schoolHeaders  = []string{"school", "institution", "school_name", "university"}
	programHeaders = []string{"program", "program_name", "degree"}
)

// Load reads extraction requests from a .csv or .xlsx file. Rows with a
// blank school or program are skipped.
func Load(ctx context.Context, path string) ([]model.ExtractionRequest, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(ctx, path)
	case ".xlsx":
		rows, err = readXLSX(path, 0)
	default:
		return nil, eris.Errorf("targets: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// fromRows maps the first row as a header and converts the remainder.
func fromRows(rows [][]string) ([]model.ExtractionRequest, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	schoolIdx, programIdx := headerIndex(rows[0])
	if schoolIdx < 0 || programIdx < 0 {
		return nil, ErrMissingColumns
	}

	var out []model.ExtractionRequest
	for _, row := range rows[1:] {
		req := model.ExtractionRequest{
			School:  strings.TrimSpace(cell(row, schoolIdx)),
			Program: strings.TrimSpace(cell(row, programIdx)),
		}
		if !req.Valid() {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func headerIndex(header []string) (school, program int) {
	school, program = -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if school < 0 && contains(schoolHeaders, name) {
			school = i
		}
		if program < 0 && contains(programHeaders, name) {
			program = i
		}
	}
	return school, program
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
