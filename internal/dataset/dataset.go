package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a CSV or XLSX file")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrEmptyDataset      = errors.New("dataset has no header row")
)

type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
	KindDate    Kind = "date"
)

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Dataset is an in-memory table. Every record has exactly len(Columns) cells.
type Dataset struct {
	Columns []Column
	Records [][]string
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Load parses an uploaded table by file extension: CSV, or the first sheet of an XLSX workbook.
func Load(r io.Reader, filename string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
	case ".xlsx":
		return loadXLSX(r)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported", ErrUnsupportedFormat)
	default:
		return nil, ErrUnsupportedFormat
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return New(header, rows[1:]), nil
}

func loadXLSX(r io.Reader) (*Dataset, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse xlsx: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDataset
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return New(rows[0], rows[1:]), nil
}

// LoadFile reads a CSV or XLSX table from disk.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, path)
}

// New builds a dataset, padding or truncating records to the header width
// and inferring column kinds.
func New(header []string, records [][]string) *Dataset {
	ds := &Dataset{Columns: make([]Column, len(header)), Records: make([][]string, 0, len(records))}
	for _, rec := range records {
		row := make([]string, len(header))
		copy(row, rec)
		ds.Records = append(ds.Records, row)
	}
	for i, name := range header {
		ds.Columns[i] = Column{Name: name, Kind: ds.inferKind(i)}
	}
	return ds
}

func (d *Dataset) inferKind(col int) Kind {
	numeric, date, seen := true, true, 0
	for _, rec := range d.Records {
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		seen++
		if _, ok := parseNumber(cell); !ok {
			numeric = false
		}
		if _, ok := parseDate(cell); !ok {
			date = false
		}
		if !numeric && !date {
			return KindText
		}
	}
	switch {
	case seen == 0:
		return KindText
	case numeric:
		return KindNumeric
	case date:
		return KindDate
	}
	return KindText
}

func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (d *Dataset) Len() int { return len(d.Records) }

func (d *Dataset) subset(records [][]string) *Dataset {
	return &Dataset{Columns: d.Columns, Records: records}
}

// Search filters rows by column: substring for text, equality for numbers and dates.
// A query that does not parse for a numeric or date column matches nothing.
func (d *Dataset) Search(query, column string) (*Dataset, error) {
	idx := d.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	out := [][]string{}
	switch d.Columns[idx].Kind {
	case KindNumeric:
		want, ok := parseNumber(query)
		if !ok {
			return d.subset(out), nil
		}
		for _, rec := range d.Records {
			if v, ok := parseNumber(rec[idx]); ok && v == want {
				out = append(out, rec)
			}
		}
	case KindDate:
		want, ok := parseDate(query)
		if !ok {
			return d.subset(out), nil
		}
		for _, rec := range d.Records {
			if v, ok := parseDate(rec[idx]); ok && v.Equal(want) {
				out = append(out, rec)
			}
		}
	default:
		q := strings.ToLower(query)
		for _, rec := range d.Records {
			if strings.Contains(strings.ToLower(rec[idx]), q) {
				out = append(out, rec)
			}
		}
	}
	return d.subset(out), nil
}

// Head returns the first n rows, or all rows when n is negative.
func (d *Dataset) Head(n int) []Row {
	if n < 0 || n > len(d.Records) {
		n = len(d.Records)
	}
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = Row{columns: d.Columns, values: d.Records[i]}
	}
	return rows
}

func (d *Dataset) Rows() []Row { return d.Head(-1) }

func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(d.Records); err != nil {
		return err
	}
	return cw.Error()
}

// Row is one record bound to its columns. It marshals as a JSON object
// with keys in column order; numeric cells become numbers and blanks null.
type Row struct {
	columns []Column
	values  []string
}

func (r Row) Get(column string) (string, bool) {
	for i, c := range r.columns {
		if c.Name == column {
			return r.values[i], true
		}
	}
	return "", false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		cell := r.values[i]
		var val []byte
		switch {
		case strings.TrimSpace(cell) == "":
			val = []byte("null")
		case c.Kind == KindNumeric:
			v, _ := parseNumber(cell)
			val, err = json.Marshal(v)
		default:
			val, err = json.Marshal(cell)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type NumericStats struct {
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Std    *float64 `json:"std"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

type Info struct {
	TotalRows          int                     `json:"total_rows"`
	TotalColumns       int                     `json:"total_columns"`
	Columns            []Column                `json:"columns"`
	NumericColumns     []string                `json:"numeric_columns"`
	CategoricalColumns []string                `json:"categorical_columns"`
	DateColumns        []string                `json:"date_columns"`
	Stats              map[string]NumericStats `json:"stats"`
}

func (d *Dataset) Info() Info {
	info := Info{
		TotalRows:          len(d.Records),
		TotalColumns:       len(d.Columns),
		Columns:            d.Columns,
		NumericColumns:     []string{},
		CategoricalColumns: []string{},
		DateColumns:        []string{},
		Stats:              make(map[string]NumericStats),
	}
	for i, c := range d.Columns {
		switch c.Kind {
		case KindNumeric:
			info.NumericColumns = append(info.NumericColumns, c.Name)
			info.Stats[c.Name] = d.numericStats(i)
		case KindDate:
			info.DateColumns = append(info.DateColumns, c.Name)
		default:
			info.CategoricalColumns = append(info.CategoricalColumns, c.Name)
		}
	}
	return info
}

func (d *Dataset) numericStats(col int) NumericStats {
	vals := make([]float64, 0, len(d.Records))
	for _, rec := range d.Records {
		if v, ok := parseNumber(rec[col]); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return NumericStats{}
	}
	sort.Float64s(vals)

	n := len(vals)
	st := NumericStats{Mean: stat.Mean(vals, nil), Min: vals[0], Max: vals[n-1]}
	if n%2 == 1 {
		st.Median = vals[n/2]
	} else {
		st.Median = (vals[n/2-1] + vals[n/2]) / 2
	}
	// sample deviation is undefined for a single value
	if n > 1 {
		std := stat.StdDev(vals, nil)
		st.Std = &std
	}
	return st
}
