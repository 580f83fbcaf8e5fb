package align

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/hydroglacier/glacierfrac/internal/raster"
)

// GDALResampler builds a VRT aligned to the reference grid with
// gdalbuildvrt. Multiple sources for a year are mosaicked by GDAL.
type GDALResampler struct {
	Runner raster.Runner
}

// NewGDALResampler checks gdalbuildvrt is on the path (or in binDir).
func NewGDALResampler(binDir string) (*GDALResampler, error) {
	runner := raster.ExecRunner{BinDir: binDir}
	if err := runner.LookPath("gdalbuildvrt"); err != nil {
		return nil, fmt.Errorf("gdal resampler unavailable: %w", err)
	}
	return &GDALResampler{Runner: runner}, nil
}

func (*GDALResampler) Name() string { return "gdalbuildvrt" }

func (g *GDALResampler) Resample(ctx context.Context, req Request) (string, error) {
	out := filepath.Join(req.OutDir, fmt.Sprintf("glacier_%d_VRT.vrt", req.Year))
	if err := g.Runner.Run(ctx, "gdalbuildvrt", BuildVRTArgs(req, out)...); err != nil {
		return "", err
	}
	return out, nil
}

// BuildVRTArgs returns the gdalbuildvrt arguments targeting the request's
// extent and resolution: -te xmin ymin xmax ymax -tr xres yres out sources...
func BuildVRTArgs(req Request, out string) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	args := []string{
		"-te", f(req.Box.XMin), f(req.Box.YMin), f(req.Box.XMax), f(req.Box.YMax),
		"-tr", f(req.Res.X), f(req.Res.Y),
		out,
	}
	return append(args, req.Sources...)
}
