// Package partition enumerates the hydrologic response units that carry
// glacier ice and their pixel footprints on the reference grid.
package partition

import (
	"fmt"
	"math"
	"sort"

	"github.com/hydroglacier/glacierfrac/internal/grid"
	"github.com/hydroglacier/glacierfrac/internal/types"
)

// Partition is the immutable set of tracked units, ordered by ascending id.
type Partition struct {
	Ref   grid.Reference
	Units []types.Unit
}

// Build selects every unit id found at a cell of the tracked land-cover
// class. The unit's mask is its whole footprint, not only the tracked cells.
func Build(units, landCover *grid.Raster, trackedClass int) (*Partition, error) {
	if !units.SameShape(landCover) {
		return nil, fmt.Errorf("partition raster is %dx%d but land-cover raster is %dx%d",
			units.Ref.Cols, units.Ref.Rows, landCover.Ref.Cols, landCover.Ref.Rows)
	}

	ids := units.Values()
	classes := landCover.Values()

	tracked := make(map[int]bool)
	for i, cls := range classes {
		if landCover.IsNoData(cls) || units.IsNoData(ids[i]) {
			continue
		}
		class, err := landCoverClass(cls)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		if class == trackedClass {
			id, err := unitID(ids[i])
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", i, err)
			}
			tracked[id] = true
		}
	}

	masks := make(map[int][]int, len(tracked))
	for i, v := range ids {
		if units.IsNoData(v) {
			continue
		}
		id, err := unitID(v)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		if tracked[id] {
			masks[id] = append(masks[id], i)
		}
	}

	p := &Partition{Ref: units.Ref, Units: make([]types.Unit, 0, len(tracked))}
	for id := range tracked {
		p.Units = append(p.Units, types.Unit{ID: id, Mask: masks[id]})
	}
	sort.Slice(p.Units, func(i, j int) bool { return p.Units[i].ID < p.Units[j].ID })
	return p, nil
}

// IDs returns the unit identifiers in partition order.
func (p *Partition) IDs() []int {
	ids := make([]int, len(p.Units))
	for i, u := range p.Units {
		ids[i] = u.ID
	}
	return ids
}

func unitID(v float64) (int, error) {
	if !whole(v) {
		return 0, fmt.Errorf("unit identifier %v is not an integer", v)
	}
	return int(v), nil
}

// landCoverClass rejects fractional codes so 7.5 is never read as class 7.
func landCoverClass(v float64) (int, error) {
	if !whole(v) {
		return 0, fmt.Errorf("land-cover class %v is not an integer", v)
	}
	return int(v), nil
}

func whole(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}
