package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// CSVOptions configures LoadCSV.
type CSVOptions struct {
	// LabelColumn is the index of the label column. Negative values count
	// from the end, so -1 is the last column.
	LabelColumn int
	// Header skips the first record.
	Header bool
	// Comma is the field delimiter (default: ',').
	Comma rune
}

// LoadCSV reads a dataset with one sample per record.
//
// Labels that all parse as non-negative integers are used as is. Otherwise
// the distinct label strings are sorted and mapped to 0..k-1, and the names
// are kept in Dataset.Classes.
func LoadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read CSV: %w", err)
	}
	if opts.Header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	width := len(records[0])
	if width < 2 {
		return nil, fmt.Errorf("%w: need a label and at least one feature, got %d columns", ErrDimensionMismatch, width)
	}
	col := opts.LabelColumn
	if col < 0 {
		col += width
	}
	if col < 0 || col >= width {
		return nil, fmt.Errorf("dataset: label column %d out of range for %d columns", opts.LabelColumn, width)
	}

	x := make([][]float32, len(records))
	labels := make([]string, len(records))
	for i, record := range records {
		if len(record) != width {
			return nil, fmt.Errorf("%w: record %d has %d fields, want %d", ErrDimensionMismatch, i+1, len(record), width)
		}
		row := make([]float32, 0, width-1)
		for j, field := range record {
			if j == col {
				labels[i] = strings.TrimSpace(field)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, fmt.Errorf("dataset: invalid value at record %d, column %d: %w", i+1, j+1, err)
			}
			row = append(row, float32(v))
		}
		x[i] = row
	}

	y, classes, err := encodeLabels(labels)
	if err != nil {
		return nil, err
	}
	d := &Dataset{X: x, Y: y, Classes: classes}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadCSVFile reads a dataset from the CSV file at path.
func LoadCSVFile(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

func encodeLabels(labels []string) ([]int32, []string, error) {
	y := make([]int32, len(labels))
	numeric := true
	for i, l := range labels {
		n, err := strconv.ParseInt(l, 10, 32)
		if err != nil || n < 0 {
			numeric = false
			break
		}
		y[i] = int32(n)
	}
	if numeric {
		return y, nil, nil
	}

	index := make(map[string]int32)
	for _, l := range labels {
		if l == "" {
			return nil, nil, fmt.Errorf("%w: empty label", ErrInvalidLabel)
		}
		index[l] = 0
	}
	classes := make([]string, 0, len(index))
	for l := range index {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	for i, l := range classes {
		index[l] = int32(i)
	}
	for i, l := range labels {
		y[i] = index[l]
	}
	return y, classes, nil
}
