package ingest

import (
	"strings"
	"testing"
)

func collectRows(t *testing.T, r *TabularReader) []RawRow {
	t.Helper()
	var rows []RawRow
	for row := range r.Rows() {
		rows = append(rows, row)
	}
	return rows
}

func TestTabularReader_Quoting(t *testing.T) {
	payload := "Bid Title,Bid Number,Notes\n" +
		"\"Roof Repair, Building 4\",B-1,plain\n" +
		"\"The \"\"Big\"\" Job\",B-2,\"line one\nline two\"\n"

	rows := collectRows(t, NewTabularReader(strings.NewReader(payload)))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if v, _ := rows[0].Get("Bid Title"); v != "Roof Repair, Building 4" {
		t.Errorf("embedded delimiter not kept: %q", v)
	}
	if v, _ := rows[1].Get("bid title"); v != `The "Big" Job` {
		t.Errorf("doubled quote not unescaped: %q", v)
	}
	if v, _ := rows[1].Get("Notes"); v != "line one\nline two" {
		t.Errorf("quoted newline not kept: %q", v)
	}
}

func TestTabularReader_DropsMismatchedAndBlankLines(t *testing.T) {
	payload := "a,b,c\n" +
		"1,2,3\n" +
		"\n" +
		"4,5\n" +
		"   \n" +
		"6,7,8,9\n" +
		"10,11,12\n"

	r := NewTabularReader(strings.NewReader(payload))
	rows := collectRows(t, r)

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows with matching field count, got %d", len(rows))
	}
	if r.Dropped() != 2 {
		t.Errorf("expected 2 dropped rows, got %d", r.Dropped())
	}
	if r.RowsRead() != 4 {
		t.Errorf("expected 4 data rows read, got %d", r.RowsRead())
	}
	if v, _ := rows[1].Get("c"); v != "12" {
		t.Errorf("unexpected last row: %v", rows[1].Map())
	}
}

func TestTabularReader_HeaderCleanup(t *testing.T) {
	payload := "\ufeff Title ,ID\nPaving,7\n"
	r := NewTabularReader(strings.NewReader(payload))
	rows := collectRows(t, r)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if got := r.Header(); got[0] != "Title" {
		t.Errorf("BOM/whitespace not trimmed from header: %q", got[0])
	}
	if _, ok := rows[0].Get("missing"); ok {
		t.Error("unknown column should not be found")
	}
}

func TestTabularReader_SinglePass(t *testing.T) {
	r := NewTabularReader(strings.NewReader("a\n1\n2\n"))
	if n := len(collectRows(t, r)); n != 2 {
		t.Fatalf("first pass: expected 2 rows, got %d", n)
	}
	if n := len(collectRows(t, r)); n != 0 {
		t.Fatalf("second pass should yield nothing, got %d", n)
	}
}

func TestTabularReader_EarlyBreak(t *testing.T) {
	r := NewTabularReader(strings.NewReader("a\n1\n2\n3\n"))
	for range r.Rows() {
		break
	}
	if r.RowsRead() != 1 {
		t.Errorf("expected reading to stop after the first row, read %d", r.RowsRead())
	}
}

func TestTabularReader_Delimiter(t *testing.T) {
	payload := "Title\tID\nStreet Sweeping\tSS-1\n"
	rows := collectRows(t, NewTabularReader(strings.NewReader(payload), WithDelimiter(delimiterFromConfig("tab"))))
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("ID"); v != "SS-1" {
		t.Errorf("unexpected id %q", v)
	}
}

func TestDelimiterFromConfig(t *testing.T) {
	tests := map[string]rune{"": ',', "comma": ',', "tab": '\t', `\t`: '\t', "pipe": '|', ";": ';', "~": '~'}
	for in, want := range tests {
		if got := delimiterFromConfig(in); got != want {
			t.Errorf("delimiterFromConfig(%q) = %q, want %q", in, got, want)
		}
	}
}
