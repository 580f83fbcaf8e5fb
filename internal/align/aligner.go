// Package align brings yearly ice-thickness snapshots onto the reference grid.
//
// The Aligner owns the reference frame and delegates the actual resampling
// to a Resampler, then reads the aligned result through the configured
// raster backend. Every failure for a year is reported as a
// types.AlignmentError so the caller can skip that year.
package align

import (
	"context"
	"fmt"

	"github.com/hydroglacier/glacierfrac/internal/grid"
	"github.com/hydroglacier/glacierfrac/internal/raster"
	"github.com/hydroglacier/glacierfrac/internal/types"
	"go.uber.org/zap"
)

// Request describes one resampling job.
type Request struct {
	Year    int
	Sources []string
	Box     grid.BoundingBox
	Res     grid.Resolution
	Ref     grid.Reference
	OutDir  string
}

// Resampler produces a raster aligned to Request.Box/Res and returns its path.
type Resampler interface {
	Name() string
	Resample(ctx context.Context, req Request) (string, error)
}

// Aligner aligns snapshots to a fixed reference grid.
type Aligner struct {
	ref       grid.Reference
	resampler Resampler
	backend   raster.Backend
	outDir    string
	logger    *zap.SugaredLogger
}

// NewAligner creates an Aligner. outDir receives the aligned rasters.
func NewAligner(ref grid.Reference, resampler Resampler, backend raster.Backend, outDir string, logger *zap.SugaredLogger) *Aligner {
	return &Aligner{
		ref:       ref,
		resampler: resampler,
		backend:   backend,
		outDir:    outDir,
		logger:    logger,
	}
}

// Reference returns the grid snapshots are aligned to.
func (a *Aligner) Reference() grid.Reference { return a.ref }

// Target returns the reference bounding box and resolution.
func (a *Aligner) Target() (grid.BoundingBox, grid.Resolution, error) {
	box, err := a.ref.BoundingBox()
	if err != nil {
		return grid.BoundingBox{}, grid.Resolution{}, err
	}
	res, err := a.ref.Resolution()
	if err != nil {
		return grid.BoundingBox{}, grid.Resolution{}, err
	}
	return box, res, nil
}

// Align resamples the year's source rasters onto the reference grid.
func (a *Aligner) Align(ctx context.Context, year int, sources []string) (*grid.Raster, error) {
	if len(sources) == 0 {
		return nil, &types.AlignmentError{Year: year, Reason: "no source rasters"}
	}

	box, res, err := a.Target()
	if err != nil {
		return nil, &types.AlignmentError{Year: year, Reason: "reference geotransform unavailable", Err: err}
	}

	a.logger.Debugf("aligning %d with %s: te=%v tr=%v sources=%v", year, a.resampler.Name(), box, res, sources)
	path, err := a.resampler.Resample(ctx, Request{
		Year:    year,
		Sources: sources,
		Box:     box,
		Res:     res,
		Ref:     a.ref,
		OutDir:  a.outDir,
	})
	if err != nil {
		return nil, &types.AlignmentError{Year: year, Reason: a.resampler.Name() + " resampling failed", Err: err}
	}

	aligned, err := a.backend.Read(ctx, path)
	if err != nil {
		return nil, &types.AlignmentError{Year: year, Reason: "reading aligned raster", Err: err}
	}
	if aligned.Ref.Cols != a.ref.Cols || aligned.Ref.Rows != a.ref.Rows {
		return nil, &types.AlignmentError{
			Year:   year,
			Reason: fmt.Sprintf("aligned raster is %dx%d, reference is %dx%d", aligned.Ref.Cols, aligned.Ref.Rows, a.ref.Cols, a.ref.Rows),
		}
	}
	return aligned, nil
}

// ResamplerType names a Resampler implementation.
type ResamplerType string

const (
	ResamplerNearest ResamplerType = "nearest"
	ResamplerGDAL    ResamplerType = "gdal"
)

// NewResampler resolves the configured resampler at startup.
func NewResampler(t ResamplerType, backend raster.Backend, gdalBinDir string) (Resampler, error) {
	switch t {
	case ResamplerNearest, "":
		return &NearestResampler{Backend: backend}, nil
	case ResamplerGDAL:
		if backend.Type() != raster.BackendGDAL {
			return nil, fmt.Errorf("the gdal resampler writes VRTs and needs the gdal raster backend, not %q", backend.Type())
		}
		return NewGDALResampler(gdalBinDir)
	default:
		return nil, fmt.Errorf("unsupported resampler %q; use 'nearest' or 'gdal'", t)
	}
}
