package align

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/hydroglacier/glacierfrac/internal/grid"
	"github.com/hydroglacier/glacierfrac/internal/raster"
)

// NearestResampler samples each reference cell centre from the source
// rasters (nearest neighbour). Overlapping sources keep the larger
// thickness; cells outside every source are ice-free (0).
type NearestResampler struct {
	Backend raster.Backend
}

func (*NearestResampler) Name() string { return "nearest" }

func (n *NearestResampler) Resample(ctx context.Context, req Request) (string, error) {
	if req.Ref.Transform == nil {
		return "", grid.ErrNoGeoTransform
	}

	cells := make([]float64, req.Ref.Cells())
	for _, src := range req.Sources {
		ras, err := n.Backend.Read(ctx, src)
		if err != nil {
			return "", err
		}
		if err := mosaic(cells, req.Ref, ras); err != nil {
			return "", fmt.Errorf("%s: %w", src, err)
		}
	}

	out, err := grid.NewRaster(req.Ref, cells)
	if err != nil {
		return "", err
	}
	path := filepath.Join(req.OutDir, fmt.Sprintf("glacier_%d_aligned.asc", req.Year))
	if err := raster.WriteASCIIFile(path, out); err != nil {
		return "", err
	}
	return path, nil
}

// mosaic samples src at every reference cell centre into dst.
func mosaic(dst []float64, ref grid.Reference, src *grid.Raster) error {
	if src.Ref.Transform == nil {
		return grid.ErrNoGeoTransform
	}
	sg := *src.Ref.Transform
	if sg.RotX() != 0 || sg.RotY() != 0 {
		return fmt.Errorf("rotated source grids are not supported")
	}
	rg := *ref.Transform

	for r := 0; r < ref.Rows; r++ {
		for c := 0; c < ref.Cols; c++ {
			fc, fr := float64(c)+0.5, float64(r)+0.5
			x := rg.OriginX() + fc*rg.PixelWidth() + fr*rg.RotX()
			y := rg.OriginY() + fc*rg.RotY() + fr*rg.PixelHeight()

			sc := int(math.Floor((x - sg.OriginX()) / sg.PixelWidth()))
			sr := int(math.Floor((y - sg.OriginY()) / sg.PixelHeight()))
			if sc < 0 || sr < 0 || sc >= src.Ref.Cols || sr >= src.Ref.Rows {
				continue
			}
			v := src.Cells.At(sr, sc)
			if src.IsNoData(v) {
				continue
			}
			i := r*ref.Cols + c
			dst[i] = math.Max(dst[i], v)
		}
	}
	return nil
}
