// Package grid describes the reference grid every raster is aligned to and
// the raster type carried between pipeline stages.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GeoTransform is the six-term affine transform in GDAL order:
// originX, pixelWidth, rotX, originY, rotY, pixelHeight.
type GeoTransform [6]float64

func (g GeoTransform) OriginX() float64     { return g[0] }
func (g GeoTransform) PixelWidth() float64  { return g[1] }
func (g GeoTransform) RotX() float64        { return g[2] }
func (g GeoTransform) OriginY() float64     { return g[3] }
func (g GeoTransform) RotY() float64        { return g[4] }
func (g GeoTransform) PixelHeight() float64 { return g[5] }

// BoundingBox is a projected extent.
type BoundingBox struct {
	XMin, YMin, XMax, YMax float64
}

// Resolution is the absolute cell size.
type Resolution struct {
	X, Y float64
}

// Reference is the canonical spatial frame. A nil Transform means the
// source raster carried no geotransform.
type Reference struct {
	Transform *GeoTransform
	Cols      int
	Rows      int
}

// ErrNoGeoTransform is returned when the reference has no transform.
var ErrNoGeoTransform = errors.New("reference grid has no geotransform")

// BoundingBox computes the extent covered by the reference grid.
func (r Reference) BoundingBox() (BoundingBox, error) {
	if r.Transform == nil {
		return BoundingBox{}, ErrNoGeoTransform
	}
	g := *r.Transform
	cols, rows := float64(r.Cols), float64(r.Rows)
	return BoundingBox{
		XMin: g.OriginX(),
		YMax: g.OriginY(),
		XMax: g.OriginX() + g.PixelWidth()*cols + g.RotX()*rows,
		YMin: g.OriginY() + g.RotY()*cols + g.PixelHeight()*rows,
	}, nil
}

// Resolution returns the absolute pixel size of the reference grid.
func (r Reference) Resolution() (Resolution, error) {
	if r.Transform == nil {
		return Resolution{}, ErrNoGeoTransform
	}
	g := *r.Transform
	return Resolution{X: math.Abs(g.PixelWidth()), Y: math.Abs(g.PixelHeight())}, nil
}

// Cells returns the number of cells in the grid.
func (r Reference) Cells() int { return r.Cols * r.Rows }

// Signature is a stable textual identity of the grid, used in cache keys.
func (r Reference) Signature() string {
	if r.Transform == nil {
		return fmt.Sprintf("nogt:%dx%d", r.Cols, r.Rows)
	}
	g := *r.Transform
	return fmt.Sprintf("%g,%g,%g,%g,%g,%g:%dx%d", g[0], g[1], g[2], g[3], g[4], g[5], r.Cols, r.Rows)
}

// Raster is a single-band grid of cell values.
type Raster struct {
	Ref    Reference
	NoData *float64
	Cells  *mat.Dense
}

// NewRaster wraps row-major data. len(data) must equal cols*rows.
func NewRaster(ref Reference, data []float64) (*Raster, error) {
	if ref.Cols <= 0 || ref.Rows <= 0 {
		return nil, fmt.Errorf("invalid raster shape %dx%d", ref.Cols, ref.Rows)
	}
	if len(data) != ref.Cells() {
		return nil, fmt.Errorf("raster data has %d cells, shape %dx%d needs %d", len(data), ref.Cols, ref.Rows, ref.Cells())
	}
	return &Raster{Ref: ref, Cells: mat.NewDense(ref.Rows, ref.Cols, data)}, nil
}

// At returns the value at a linear cell index.
func (r *Raster) At(idx int) float64 {
	return r.Cells.At(idx/r.Ref.Cols, idx%r.Ref.Cols)
}

// Values returns the cell values in row-major order.
func (r *Raster) Values() []float64 {
	out := make([]float64, 0, r.Ref.Cells())
	for i := 0; i < r.Ref.Rows; i++ {
		out = append(out, r.Cells.RawRowView(i)...)
	}
	return out
}

// IsNoData reports whether v is the raster's nodata marker.
func (r *Raster) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return r.NoData != nil && v == *r.NoData
}

// SameShape reports whether two rasters can be compared cell by cell.
func (r *Raster) SameShape(o *Raster) bool {
	return r.Ref.Cols == o.Ref.Cols && r.Ref.Rows == o.Ref.Rows
}
