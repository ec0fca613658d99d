package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/david/govmatch/internal/logger"
)

// RawRow is one data line of a delimited export keyed by the header's column names.
// Rows from the same reader share the header index.
type RawRow struct {
	header *tabularHeader
	values []string
}

type tabularHeader struct {
	columns []string
	index   map[string]int // lower-cased column name -> position
}

// Columns returns the header names in file order.
func (r RawRow) Columns() []string {
	return r.header.columns
}

// Get returns the trimmed value of a column, matched case-insensitively.
func (r RawRow) Get(column string) (string, bool) {
	i, ok := r.header.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return strings.TrimSpace(r.values[i]), true
}

// Map copies the row into a plain map. Handy for logging and tests.
func (r RawRow) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, col := range r.header.columns {
		if i < len(r.values) {
			m[col] = r.values[i]
		}
	}
	return m
}

// NewRawRow builds a standalone row; mappers are tested with it.
func NewRawRow(columns, values []string) RawRow {
	return RawRow{header: newTabularHeader(columns), values: values}
}

func newTabularHeader(columns []string) *tabularHeader {
	h := &tabularHeader{columns: make([]string, len(columns)), index: make(map[string]int, len(columns))}
	for i, col := range columns {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		h.columns[i] = col
		key := strings.ToLower(col)
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

// TabularReader streams RawRows out of a delimited payload. The first record is the header.
type TabularReader struct {
	csv     *csv.Reader
	log     *logger.Logger
	header  *tabularHeader
	read    int
	dropped int
	used    bool
	err     error
}

type TabularOption func(*TabularReader)

// WithDelimiter switches the field separator (default ',').
func WithDelimiter(d rune) TabularOption {
	return func(t *TabularReader) {
		if d != 0 {
			t.csv.Comma = d
		}
	}
}

func WithTabularLogger(l *logger.Logger) TabularOption {
	return func(t *TabularReader) {
		if l != nil {
			t.log = l
		}
	}
}

func NewTabularReader(r io.Reader, opts ...TabularOption) *TabularReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	t := &TabularReader{csv: cr, log: logger.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Rows yields every data row whose field count matches the header. Mismatched rows are
// dropped and counted. The sequence is single-pass: ranging over it a second time yields
// nothing, callers that need another pass must build a new reader over the same text.
func (t *TabularReader) Rows() iter.Seq[RawRow] {
	return func(yield func(RawRow) bool) {
		if t.used {
			return
		}
		t.used = true

		for {
			record, err := t.csv.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					if t.header != nil {
						t.read++
					}
					t.dropped++
					t.log.Warn("Dropping unparseable row", "line", parseErr.Line, "error", parseErr.Err)
					continue
				}
				t.err = err
				t.log.Error("Tabular read aborted", "error", err)
				return
			}
			if isBlankRecord(record) {
				continue
			}
			if t.header == nil {
				t.header = newTabularHeader(record)
				continue
			}

			t.read++
			if len(record) != len(t.header.columns) {
				t.dropped++
				line, _ := t.csv.FieldPos(0)
				t.log.Warn("Dropping row with mismatched field count",
					"line", line, "fields", len(record), "expected", len(t.header.columns))
				continue
			}
			if !yield(RawRow{header: t.header, values: record}) {
				return
			}
		}
	}
}

// Header returns the column names, or nil before the header record has been read.
func (t *TabularReader) Header() []string {
	if t.header == nil {
		return nil
	}
	return t.header.columns
}

// Err reports a read failure that ended the sequence early. Malformed rows are not errors.
func (t *TabularReader) Err() error { return t.err }

// RowsRead counts data lines seen so far, dropped ones included.
func (t *TabularReader) RowsRead() int { return t.read }

// Dropped counts data lines discarded for malformed structure.
func (t *TabularReader) Dropped() int { return t.dropped }

func isBlankRecord(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

// delimiterFromConfig turns the registry's delimiter setting into a rune.
func delimiterFromConfig(s string) rune {
	switch strings.ToLower(s) {
	case "", ",", "comma":
		return ','
	case "\\t", "\t", "tab":
		return '\t'
	case "|", "pipe":
		return '|'
	case ";", "semicolon":
		return ';'
	}
	return []rune(s)[0]
}
