// Package dataset loads the nutrition and physical activity survey CSV and
// answers the aggregate queries behind every job operation.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Column names read from the CSV header. Other columns are ignored.
const (
	ColState    = "LocationDesc"
	ColQuestion = "Question"
	ColCategory = "StratificationCategory1"
	ColStratum  = "Stratification1"
	ColValue    = "Data_Value"
)

var requiredColumns = []string{ColState, ColQuestion, ColCategory, ColStratum, ColValue}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Row is one survey observation. Valid is false when Data_Value was empty or
// not a number; such rows take part in grouping but never in a mean.
type Row struct {
	State    string
	Question string
	Category string
	Stratum  string
	Value    float64
	Valid    bool
}

// Dataset is an immutable, in-memory copy of the survey rows.
// It is safe for concurrent use once loaded.
type Dataset struct {
	rows       []Row
	byQuestion map[string][]int
	// states in order of first appearance
	states []string
}

// Load reads and parses the CSV at path.
func Load(path string, logger *slog.Logger) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}

	if logger != nil {
		logger.Info("dataset loaded",
			"path", path,
			"rows", ds.Len(),
			"questions", len(ds.byQuestion),
			"states", len(ds.states))
	}
	return ds, nil
}

// Parse reads a CSV with a header row from r.
func Parse(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(requiredColumns))
	for i, name := range header {
		// Exported spreadsheets sometimes carry a BOM on the first cell.
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		idx[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	ds := &Dataset{byQuestion: make(map[string][]int)}
	seenState := make(map[string]bool)

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := Row{
			State:    field(rec, idx[ColState]),
			Question: field(rec, idx[ColQuestion]),
			Category: field(rec, idx[ColCategory]),
			Stratum:  field(rec, idx[ColStratum]),
		}
		if v, err := strconv.ParseFloat(field(rec, idx[ColValue]), 64); err == nil {
			row.Value, row.Valid = v, true
		}

		ds.byQuestion[row.Question] = append(ds.byQuestion[row.Question], len(ds.rows))
		ds.rows = append(ds.rows, row)
		if row.State != "" && !seenState[row.State] {
			seenState[row.State] = true
			ds.states = append(ds.states, row.State)
		}
	}

	return ds, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// States returns every state in order of first appearance.
func (d *Dataset) States() []string {
	return append([]string(nil), d.states...)
}

// Questions returns the number of distinct questions.
func (d *Dataset) Questions() int {
	return len(d.byQuestion)
}

// rowsFor calls fn for each row answering question.
func (d *Dataset) rowsFor(question string, fn func(Row)) {
	for _, i := range d.byQuestion[question] {
		fn(d.rows[i])
	}
}
