// Package output writes the daily, annual and seasonal tables as delimited
// text. Tables are staged next to their destination and renamed into place
// together, so a failed run never leaves a partial table behind.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hydroglacier/glacierfrac/internal/constants"
	"github.com/hydroglacier/glacierfrac/internal/series"
)

// DefaultDelimiter separates columns unless configured otherwise.
const DefaultDelimiter = '\t'

// Ext returns the file extension for tables separated by delim: ".tsv" for
// tabs, ".csv" for anything else.
func Ext(delim rune) string {
	if delim == '\t' {
		return ".tsv"
	}
	return ".csv"
}

// DailyName returns the file name of a daily table covering first..last.
func DailyName(t *series.Table, delim rune) string {
	first, last := t.Span()
	return fmt.Sprintf("glacier_fraction_daily_%s_%s%s",
		first.Format(constants.DateLayout), last.Format(constants.DateLayout), Ext(delim))
}

// AnnualName returns the file name of the annual table.
func AnnualName(t *series.Table, delim rune) string {
	y0, y1 := yearSpan(t)
	return fmt.Sprintf("glacier_fraction_annual_%d_%d%s", y0, y1, Ext(delim))
}

// SeasonalName returns the file name of the seasonal summary.
func SeasonalName(st *series.SeasonTable, delim rune) string {
	var y0, y1 int
	if len(st.Rows) > 0 {
		y0, y1 = st.Rows[0].HydroYear, st.Rows[len(st.Rows)-1].HydroYear
	}
	return fmt.Sprintf("glacier_fraction_seasonal_%d_%d%s", y0, y1, Ext(delim))
}

func yearSpan(t *series.Table) (int, int) {
	if len(t.Annual) == 0 {
		return 0, 0
	}
	return t.Annual[0].Year, t.Annual[len(t.Annual)-1].Year
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func header(first string, unitIDs []int) []string {
	h := make([]string, 0, len(unitIDs)+1)
	h = append(h, first)
	for _, id := range unitIDs {
		h = append(h, strconv.Itoa(id))
	}
	return h
}

// Batch stages tables in one directory and publishes them together. Nothing
// is visible under its final name until Commit.
type Batch struct {
	dir    string
	delim  rune
	staged []staged
}

type staged struct {
	tmp  string
	path string
}

// NewBatch starts an empty batch writing into dir.
func NewBatch(dir string, delim rune) *Batch {
	return &Batch{dir: dir, delim: delim}
}

// Daily stages one row per date, one column per unit, and returns the path
// the table will have after Commit.
func (b *Batch) Daily(t *series.Table) (string, error) {
	if t.Empty() {
		return "", fmt.Errorf("daily table is empty")
	}

	path := filepath.Join(b.dir, DailyName(t, b.delim))
	err := b.stage(path, func(w *csv.Writer) error {
		if err := w.Write(header("date", t.UnitIDs)); err != nil {
			return err
		}
		row := make([]string, len(t.UnitIDs)+1)
		for d, date := range t.Dates {
			row[0] = date.Format(constants.DateLayout)
			for u := range t.UnitIDs {
				row[u+1] = formatFloat(t.Values[u][d])
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write daily table: %w", err)
	}
	return path, nil
}

// Annual stages one row per valid year, one column per unit.
func (b *Batch) Annual(t *series.Table) (string, error) {
	if len(t.Annual) == 0 {
		return "", fmt.Errorf("annual table is empty")
	}

	path := filepath.Join(b.dir, AnnualName(t, b.delim))
	err := b.stage(path, func(w *csv.Writer) error {
		if err := w.Write(header("year", t.UnitIDs)); err != nil {
			return err
		}
		row := make([]string, len(t.UnitIDs)+1)
		for _, rec := range t.Annual {
			row[0] = strconv.Itoa(rec.Year)
			for u, id := range t.UnitIDs {
				f, err := rec.Fraction(id)
				if err != nil {
					return err
				}
				row[u+1] = formatFloat(f)
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write annual table: %w", err)
	}
	return path, nil
}

// Seasonal stages one row per hydrological year and season.
func (b *Batch) Seasonal(st *series.SeasonTable) (string, error) {
	if len(st.Rows) == 0 {
		return "", fmt.Errorf("seasonal table is empty")
	}

	path := filepath.Join(b.dir, SeasonalName(st, b.delim))
	err := b.stage(path, func(w *csv.Writer) error {
		h := append([]string{"hydro_year", "season", "days"}, header("", st.UnitIDs)[1:]...)
		if err := w.Write(h); err != nil {
			return err
		}
		row := make([]string, len(st.UnitIDs)+3)
		for _, r := range st.Rows {
			row[0] = strconv.Itoa(r.HydroYear)
			row[1] = string(r.Season)
			row[2] = strconv.Itoa(r.Days)
			for u, m := range r.Means {
				row[u+3] = formatFloat(m)
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write seasonal table: %w", err)
	}
	return path, nil
}

// Commit renames every staged table into place. On failure the tables not
// yet renamed are discarded.
func (b *Batch) Commit() error {
	for i, st := range b.staged {
		if err := os.Rename(st.tmp, st.path); err != nil {
			b.staged = b.staged[i:]
			b.Abort()
			return fmt.Errorf("failed to publish %s: %w", filepath.Base(st.path), err)
		}
	}
	b.staged = nil
	return nil
}

// Abort removes every staged table. It is safe to call after Commit.
func (b *Batch) Abort() {
	for _, st := range b.staged {
		os.Remove(st.tmp)
	}
	b.staged = nil
}

// WriteDaily writes and publishes a daily table on its own.
func WriteDaily(dir string, t *series.Table, delim rune) (string, error) {
	return writeOne(dir, delim, func(b *Batch) (string, error) { return b.Daily(t) })
}

// WriteAnnual writes and publishes an annual table on its own.
func WriteAnnual(dir string, t *series.Table, delim rune) (string, error) {
	return writeOne(dir, delim, func(b *Batch) (string, error) { return b.Annual(t) })
}

// WriteSeasonal writes and publishes a seasonal summary on its own.
func WriteSeasonal(dir string, st *series.SeasonTable, delim rune) (string, error) {
	return writeOne(dir, delim, func(b *Batch) (string, error) { return b.Seasonal(st) })
}

func writeOne(dir string, delim rune, stage func(*Batch) (string, error)) (string, error) {
	b := NewBatch(dir, delim)
	path, err := stage(b)
	if err != nil {
		b.Abort()
		return "", err
	}
	if err := b.Commit(); err != nil {
		return "", err
	}
	return path, nil
}

func (b *Batch) stage(path string, fill func(*csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	w := csv.NewWriter(tmp)
	w.Comma = b.delim
	if err := fill(w); err != nil {
		cleanup()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	b.staged = append(b.staged, staged{tmp: tmp.Name(), path: path})
	return nil
}
