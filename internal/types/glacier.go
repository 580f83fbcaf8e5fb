// Package types holds the records shared between the pipeline stages and the
// error taxonomy they report with.
package types

import "fmt"

// Unit is a hydrologic response unit that touches the tracked land-cover
// class. Mask holds the linear cell indices (row*cols+col) of the unit's full
// footprint on the reference grid.
type Unit struct {
	ID   int
	Mask []int
}

// PixelCount returns the footprint size.
func (u Unit) PixelCount() int { return len(u.Mask) }

// AnnualRecord is the per-unit occupancy fraction for one snapshot year.
// Fractions is parallel to the unit order of the partition it was built from.
type AnnualRecord struct {
	Year      int       `msgpack:"year"`
	UnitIDs   []int     `msgpack:"unit_ids"`
	Fractions []float64 `msgpack:"fractions"`
}

// Fraction returns the fraction for a unit id.
func (r AnnualRecord) Fraction(unitID int) (float64, error) {
	for i, id := range r.UnitIDs {
		if id == unitID {
			return r.Fractions[i], nil
		}
	}
	return 0, fmt.Errorf("unit %d not present in %d record", unitID, r.Year)
}

// SkippedYear records a year excluded from the outputs and why.
type SkippedYear struct {
	Year   int
	Reason string
}
