package series

import (
	"time"

	"github.com/hydroglacier/glacierfrac/internal/types"
)

// Table is the assembled daily series for every unit plus the annual
// records it was built from.
type Table struct {
	UnitIDs []int
	Dates   []time.Time
	// Values[u][d] is the fraction of unit UnitIDs[u] on Dates[d].
	Values [][]float64
	Annual []types.AnnualRecord
}

// Len returns the number of days in the table.
func (t *Table) Len() int { return len(t.Dates) }

// Empty reports whether no daily values were emitted.
func (t *Table) Empty() bool { return len(t.Dates) == 0 }

// Span returns the first and last dates.
func (t *Table) Span() (first, last time.Time) {
	if t.Empty() {
		return time.Time{}, time.Time{}
	}
	return t.Dates[0], t.Dates[len(t.Dates)-1]
}

// Column returns the daily series of a unit, or nil when absent.
func (t *Table) Column(unitID int) []float64 {
	for i, id := range t.UnitIDs {
		if id == unitID {
			return t.Values[i]
		}
	}
	return nil
}

// Row returns every unit's value for day d.
func (t *Table) Row(d int) []float64 {
	row := make([]float64, len(t.UnitIDs))
	for u := range t.UnitIDs {
		row[u] = t.Values[u][d]
	}
	return row
}

// IndexOf returns the row index of date, or -1.
func (t *Table) IndexOf(date time.Time) int {
	if t.Empty() {
		return -1
	}
	i := int(date.Sub(t.Dates[0]).Hours() / 24)
	if i < 0 || i >= len(t.Dates) || !t.Dates[i].Equal(date) {
		return -1
	}
	return i
}

// AnnualYears returns the years present in the annual matrix.
func (t *Table) AnnualYears() []int {
	years := make([]int, len(t.Annual))
	for i, r := range t.Annual {
		years[i] = r.Year
	}
	return years
}
