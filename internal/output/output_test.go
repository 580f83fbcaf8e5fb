package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydroglacier/glacierfrac/internal/series"
	"github.com/hydroglacier/glacierfrac/internal/types"
)

func sampleTable() *series.Table {
	d := func(m time.Month, day int) time.Time { return time.Date(2002, m, day, 0, 0, 0, 0, time.UTC) }
	return &series.Table{
		UnitIDs: []int{3, 10},
		Dates:   []time.Time{d(9, 28), d(9, 29), d(9, 30)},
		Values: [][]float64{
			{0.5, 0.625, 0.75},
			{0, 0.125, 0.25},
		},
		Annual: []types.AnnualRecord{
			{Year: 2001, UnitIDs: []int{3, 10}, Fractions: []float64{0.5, 0}},
			{Year: 2002, UnitIDs: []int{3, 10}, Fractions: []float64{0.75, 0.25}},
		},
	}
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDaily(dir, sampleTable(), DefaultDelimiter)
	if err != nil {
		t.Fatalf("WriteDaily: %v", err)
	}
	if filepath.Base(path) != "glacier_fraction_daily_2002-09-28_2002-09-30.tsv" {
		t.Errorf("file name = %s", filepath.Base(path))
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := "date\t3\t10\n" +
		"2002-09-28\t0.5\t0\n" +
		"2002-09-29\t0.625\t0.125\n" +
		"2002-09-30\t0.75\t0.25\n"
	if string(got) != expected {
		t.Errorf("daily table =\n%s\nexpected\n%s", got, expected)
	}
}

func TestWriteAnnual(t *testing.T) {
	path, err := WriteAnnual(t.TempDir(), sampleTable(), ',')
	if err != nil {
		t.Fatalf("WriteAnnual: %v", err)
	}
	if filepath.Base(path) != "glacier_fraction_annual_2001_2002.csv" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	got, _ := os.ReadFile(path)
	expected := "year,3,10\n2001,0.5,0\n2002,0.75,0.25\n"
	if string(got) != expected {
		t.Errorf("annual table =\n%s\nexpected\n%s", got, expected)
	}
}

func TestWriteSeasonal(t *testing.T) {
	st := &series.SeasonTable{
		UnitIDs: []int{3, 10},
		Rows: []series.SeasonRow{
			{HydroYear: 2002, Season: series.Summer, Days: 3, Means: []float64{0.625, 0.125}},
		},
	}
	path, err := WriteSeasonal(t.TempDir(), st, DefaultDelimiter)
	if err != nil {
		t.Fatalf("WriteSeasonal: %v", err)
	}
	if filepath.Base(path) != "glacier_fraction_seasonal_2002_2002.tsv" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	got, _ := os.ReadFile(path)
	expected := "hydro_year\tseason\tdays\t3\t10\n2002\tsummer\t3\t0.625\t0.125\n"
	if string(got) != expected {
		t.Errorf("seasonal table =\n%s\nexpected\n%s", got, expected)
	}
}

func TestExtFollowsDelimiter(t *testing.T) {
	tests := []struct {
		delim rune
		ext   string
	}{
		{'\t', ".tsv"},
		{',', ".csv"},
		{';', ".csv"},
		{'|', ".csv"},
	}

	for _, tt := range tests {
		t.Run(string(tt.delim), func(t *testing.T) {
			if got := Ext(tt.delim); got != tt.ext {
				t.Errorf("Ext(%q) = %s, expected %s", tt.delim, got, tt.ext)
			}
			if got := filepath.Ext(AnnualName(sampleTable(), tt.delim)); got != tt.ext {
				t.Errorf("AnnualName extension = %s, expected %s", got, tt.ext)
			}
		})
	}
}

func TestBatchPublishesOnlyOnCommit(t *testing.T) {
	tests := []struct {
		name   string
		commit bool
		files  int
	}{
		{"commit", true, 2},
		{"abort", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			b := NewBatch(dir, DefaultDelimiter)
			daily, err := b.Daily(sampleTable())
			if err != nil {
				t.Fatalf("Daily: %v", err)
			}
			if _, err := b.Annual(sampleTable()); err != nil {
				t.Fatalf("Annual: %v", err)
			}
			if _, err := os.Stat(daily); !os.IsNotExist(err) {
				t.Errorf("daily table visible before commit (stat error %v)", err)
			}

			if tt.commit {
				if err := b.Commit(); err != nil {
					t.Fatalf("Commit: %v", err)
				}
			} else {
				b.Abort()
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != tt.files {
				t.Errorf("found %d files, expected %d", len(entries), tt.files)
			}
		})
	}
}

func TestRewriteIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	first, err := WriteDaily(dir, sampleTable(), DefaultDelimiter)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(first)

	second, err := WriteDaily(dir, sampleTable(), DefaultDelimiter)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(second)

	if first != second || !bytes.Equal(a, b) {
		t.Error("rewriting the same table changed the output")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("found %d files, expected only the table (no temp files left)", len(entries))
	}
}

func TestEmptyTablesAreRejected(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteDaily(dir, &series.Table{}, DefaultDelimiter); err == nil {
		t.Error("WriteDaily accepted an empty table")
	}
	if _, err := WriteAnnual(dir, &series.Table{}, DefaultDelimiter); err == nil {
		t.Error("WriteAnnual accepted an empty table")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("found %d files after rejected writes", len(entries))
	}
}
