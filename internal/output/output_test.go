package output

import (
	"bytes"
	"strings"
	"testing"

	"sctools/pkg/api"
)

func TestFormats_Stable(t *testing.T) {
	if FormatText != "text" || FormatCSV != "csv" || FormatJSON != "json" || FormatJSONL != "jsonl" {
		t.Fatalf("output format constants changed")
	}
	for _, f := range Formats {
		if err := CheckFormat(f); err != nil {
			t.Fatalf("CheckFormat(%q): %v", f, err)
		}
	}
	if CheckFormat("fasta") == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestColumns_HeaderMatchesCells(t *testing.T) {
	checks := []struct {
		name  string
		names []string
		cells []string
	}{
		{"stage", StageColumns.Names, StageColumns.Cells(api.StageV1{})},
		{"run", RunColumns.Names, RunColumns.Cells(api.RunV1{})},
		{"rank", RankColumns.Names, RankColumns.Cells(api.RankRowV1{})},
		{"scan", ScanColumns.Names, ScanColumns.Cells(api.ScanPointV1{})},
		{"scan r2", ScanR2Columns.Names, ScanR2Columns.Cells(api.ScanPointV1{})},
		{"pc", PCContributionColumns.Names, PCContributionColumns.Cells(api.PCContributionV1{})},
		{"lookup", LookupColumns.Names, LookupColumns.Cells(api.LookupV1{})},
		{"summary", SummaryColumns.Names, SummaryColumns.Cells(api.SummaryV1{})},
		{"labels", LabelCountColumns.Names, LabelCountColumns.Cells(api.LabelCountV1{})},
	}
	for _, c := range checks {
		if len(c.names) != len(c.cells) {
			t.Errorf("%s: %d names vs %d cells", c.name, len(c.names), len(c.cells))
		}
	}
}

func feed[T any](rows ...T) <-chan T {
	ch := make(chan T, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

func TestStreamText(t *testing.T) {
	var buf bytes.Buffer
	in := feed(api.ScanPointV1{Resolution: 0.1, Score: 1, Clusters: 3}, api.ScanPointV1{Resolution: 0.15, Score: 0.75, Clusters: 4})
	if err := StreamText(&buf, in, true, ScanColumns); err != nil {
		t.Fatal(err)
	}
	want := "resolution\tscore\tclusters\n0.1\t1\t3\n0.15\t0.75\t4\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestStreamText_ScanR2(t *testing.T) {
	var buf bytes.Buffer
	r2 := 0.5
	in := feed(api.ScanPointV1{Resolution: 0.1, Score: 1, Clusters: 3, R2: &r2}, api.ScanPointV1{Resolution: 0.2, Score: 1, Clusters: 3})
	if err := StreamText(&buf, in, true, ScanR2Columns); err != nil {
		t.Fatal(err)
	}
	want := "resolution\tscore\tclusters\tr2\n0.1\t1\t3\t0.5\n0.2\t1\t3\t\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestStreamCSV_Quotes(t *testing.T) {
	var buf bytes.Buffer
	in := feed(api.LookupV1{Gene: "CD3E", Function: "T-cell receptor, signaling", GOMolecularFunction: "NA"})
	if err := StreamCSV(&buf, in, false, LookupColumns); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != `CD3E,"T-cell receptor, signaling",NA` {
		t.Fatalf("got %q", got)
	}
}

func TestWriteJSON_NilIsEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON[api.RunV1](&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("got %q", buf.String())
	}
}
