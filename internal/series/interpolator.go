// Package series turns sparse annual occupancy fractions into a continuous
// daily series per unit.
//
// Each processed year Y emits the hydrological window 1 October Y-1 through
// 30 September Y. Days before 1 March Y hold the previous year's fraction;
// from 1 March Y (inclusive) the fraction ramps linearly to the year's value,
// reaching it exactly on 30 September Y. The first year only seeds the
// previous fraction and emits nothing.
package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/hydroglacier/glacierfrac/internal/constants"
	"github.com/hydroglacier/glacierfrac/internal/types"
	"gonum.org/v1/gonum/floats"
)

// ErrFinalized is returned by Push once Table has been called.
var ErrFinalized = errors.New("interpolator already finalized")

// Window returns the first day, first ramp day and last day of hydrological year y.
func Window(y int) (start, ramp, end time.Time) {
	start = time.Date(y-1, constants.HydroYearStartMonth, constants.HydroYearStartDay, 0, 0, 0, 0, time.UTC)
	ramp = time.Date(y, constants.RampStartMonth, constants.RampStartDay, 0, 0, 0, 0, time.UTC)
	end = time.Date(y, constants.HydroYearEndMonth, constants.HydroYearEndDay, 0, 0, 0, 0, time.UTC)
	return start, ramp, end
}

// daysBetween counts calendar days from a to b, inclusive.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours()/24) + 1
}

// Interpolator is the per-unit state machine driven by the year loop.
type Interpolator struct {
	unitIDs  []int
	prev     []float64
	lastYear int
	seeded   bool
	done     bool

	records []types.AnnualRecord
	dates   []time.Time
	values  [][]float64
}

// NewInterpolator creates an interpolator for the given unit order.
func NewInterpolator(unitIDs []int) *Interpolator {
	ids := append([]int(nil), unitIDs...)
	return &Interpolator{
		unitIDs: ids,
		prev:    make([]float64, len(ids)),
		values:  make([][]float64, len(ids)),
	}
}

// Push feeds the next year's record. Years must be strictly ascending.
// Years missing between the previous record and this one hold the previous
// fraction flat for their whole window.
func (ip *Interpolator) Push(rec types.AnnualRecord) error {
	if ip.done {
		return ErrFinalized
	}
	if err := ip.checkUnits(rec); err != nil {
		return err
	}

	if !ip.seeded {
		copy(ip.prev, rec.Fractions)
		ip.lastYear = rec.Year
		ip.seeded = true
		ip.records = append(ip.records, rec)
		return nil
	}
	if rec.Year <= ip.lastYear {
		return &types.OrderingError{Previous: ip.lastYear, Got: rec.Year}
	}

	for y := ip.lastYear + 1; y < rec.Year; y++ {
		ip.emitFlat(y)
	}
	ip.emitYear(rec.Year, rec.Fractions)

	copy(ip.prev, rec.Fractions)
	ip.lastYear = rec.Year
	ip.records = append(ip.records, rec)
	return nil
}

func (ip *Interpolator) checkUnits(rec types.AnnualRecord) error {
	if len(rec.UnitIDs) != len(ip.unitIDs) || len(rec.Fractions) != len(ip.unitIDs) {
		return fmt.Errorf("record for %d has %d units, expected %d", rec.Year, len(rec.UnitIDs), len(ip.unitIDs))
	}
	for i, id := range rec.UnitIDs {
		if id != ip.unitIDs[i] {
			return fmt.Errorf("record for %d lists unit %d at position %d, expected %d", rec.Year, id, i, ip.unitIDs[i])
		}
	}
	return nil
}

func (ip *Interpolator) emitFlat(y int) {
	start, _, end := Window(y)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		ip.dates = append(ip.dates, d)
		for u := range ip.unitIDs {
			ip.values[u] = append(ip.values[u], ip.prev[u])
		}
	}
}

func (ip *Interpolator) emitYear(y int, current []float64) {
	start, rampStart, end := Window(y)
	steps := daysBetween(rampStart, end)

	ramps := make([][]float64, len(ip.unitIDs))
	for u := range ip.unitIDs {
		r := floats.Span(make([]float64, steps), ip.prev[u], current[u])
		r[steps-1] = current[u]
		ramps[u] = r
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		ip.dates = append(ip.dates, d)
		if d.Before(rampStart) {
			for u := range ip.unitIDs {
				ip.values[u] = append(ip.values[u], ip.prev[u])
			}
			continue
		}
		k := daysBetween(rampStart, d) - 1
		for u := range ip.unitIDs {
			ip.values[u] = append(ip.values[u], ramps[u][k])
		}
	}
}

// Table finalizes the interpolator and assembles the output table.
func (ip *Interpolator) Table() (*Table, error) {
	ip.done = true
	for u, id := range ip.unitIDs {
		if len(ip.values[u]) != len(ip.dates) {
			return nil, &types.AssemblyError{UnitID: id, Want: len(ip.dates), Got: len(ip.values[u])}
		}
	}
	return &Table{
		UnitIDs: ip.unitIDs,
		Dates:   ip.dates,
		Values:  ip.values,
		Annual:  ip.records,
	}, nil
}

// Build validates that records are strictly ascending by year and runs
// them through a fresh Interpolator.
func Build(unitIDs []int, records []types.AnnualRecord) (*Table, error) {
	for i := 1; i < len(records); i++ {
		if records[i].Year <= records[i-1].Year {
			return nil, &types.OrderingError{Previous: records[i-1].Year, Got: records[i].Year}
		}
	}

	ip := NewInterpolator(unitIDs)
	for _, rec := range records {
		if err := ip.Push(rec); err != nil {
			return nil, err
		}
	}
	return ip.Table()
}
