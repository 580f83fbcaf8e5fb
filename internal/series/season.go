package series

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Season splits the hydrological year.
type Season string

const (
	// Winter runs October through March.
	Winter Season = "winter"
	// Summer runs April through September.
	Summer Season = "summer"
)

// SeasonOf classifies a date and returns its hydrological year.
func SeasonOf(d time.Time) (int, Season) {
	hy := d.Year()
	if d.Month() >= time.October {
		hy++
	}
	if d.Month() >= time.April && d.Month() <= time.September {
		return hy, Summer
	}
	return hy, Winter
}

// SeasonRow holds the mean daily fraction per unit over one season.
type SeasonRow struct {
	HydroYear int
	Season    Season
	Days      int
	Means     []float64
}

// SeasonTable is the seasonal summary of a daily Table.
type SeasonTable struct {
	UnitIDs []int
	Rows    []SeasonRow
}

// Seasonal averages the daily table over each winter and summer. Dates in a
// Table are contiguous, so each season is a single run of rows.
func Seasonal(t *Table) *SeasonTable {
	st := &SeasonTable{UnitIDs: t.UnitIDs}

	start := 0
	for start < len(t.Dates) {
		hy, season := SeasonOf(t.Dates[start])
		end := start + 1
		for end < len(t.Dates) {
			y, s := SeasonOf(t.Dates[end])
			if y != hy || s != season {
				break
			}
			end++
		}

		row := SeasonRow{HydroYear: hy, Season: season, Days: end - start, Means: make([]float64, len(t.UnitIDs))}
		for u := range t.UnitIDs {
			row.Means[u] = stat.Mean(t.Values[u][start:end], nil)
		}
		st.Rows = append(st.Rows, row)
		start = end
	}
	return st
}
