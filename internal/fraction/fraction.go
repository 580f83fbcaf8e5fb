// Package fraction reduces an aligned thickness snapshot to per-unit ice
// occupancy fractions.
package fraction

import (
	"fmt"

	"github.com/hydroglacier/glacierfrac/internal/grid"
	"github.com/hydroglacier/glacierfrac/internal/types"
)

// Compute returns the share of the unit's footprint with positive ice
// thickness. An empty footprint is a DivisionByZeroError.
func Compute(snapshot *grid.Raster, unit types.Unit) (float64, error) {
	total := unit.PixelCount()
	if total == 0 {
		return 0, &types.DivisionByZeroError{UnitID: unit.ID}
	}

	cells := snapshot.Ref.Cells()
	ice := 0
	for _, idx := range unit.Mask {
		if idx < 0 || idx >= cells {
			return 0, fmt.Errorf("unit %d mask index %d outside %d-cell snapshot", unit.ID, idx, cells)
		}
		// NaN compares false, so nodata cells never count as ice.
		v := snapshot.At(idx)
		if v > 0 && !snapshot.IsNoData(v) {
			ice++
		}
	}
	return float64(ice) / float64(total), nil
}

// Annual computes the record for one year across all units.
func Annual(year int, snapshot *grid.Raster, units []types.Unit) (types.AnnualRecord, error) {
	rec := types.AnnualRecord{
		Year:      year,
		UnitIDs:   make([]int, len(units)),
		Fractions: make([]float64, len(units)),
	}
	for i, u := range units {
		f, err := Compute(snapshot, u)
		if err != nil {
			return types.AnnualRecord{}, err
		}
		rec.UnitIDs[i] = u.ID
		rec.Fractions[i] = f
	}
	return rec, nil
}
