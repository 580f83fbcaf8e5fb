// Package raster reads and writes the rasters consumed by the pipeline. The
// backend is chosen once at startup; there is no runtime fallback between
// backends.
package raster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hydroglacier/glacierfrac/internal/grid"
)

// BackendType names a raster backend implementation.
type BackendType string

const (
	// BackendASCII reads ESRI ASCII grids natively.
	BackendASCII BackendType = "ascii"

	// BackendGDAL converts any GDAL-readable raster (GeoTIFF, VRT, ...) to
	// an ASCII grid with gdal_translate and reads the result.
	BackendGDAL BackendType = "gdal"
)

// Backend loads a single-band raster.
type Backend interface {
	Type() BackendType
	Read(ctx context.Context, path string) (*grid.Raster, error)
}

// Runner executes an external command. The default implementation is
// ExecRunner; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, prefixing binaries with BinDir
// when set.
type ExecRunner struct {
	BinDir string
}

// Run executes the command and folds its combined output into the error.
func (e ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, e.resolve(name), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, out)
	}
	return nil
}

// LookPath verifies a binary is available.
func (e ExecRunner) LookPath(name string) error {
	_, err := exec.LookPath(e.resolve(name))
	return err
}

func (e ExecRunner) resolve(name string) string {
	if e.BinDir == "" {
		return name
	}
	return filepath.Join(e.BinDir, name)
}

// NewBackend resolves the configured backend, checking that it can run.
func NewBackend(t BackendType, gdalBinDir string) (Backend, error) {
	switch t {
	case BackendASCII, "":
		return ASCIIBackend{}, nil
	case BackendGDAL:
		runner := ExecRunner{BinDir: gdalBinDir}
		if err := runner.LookPath("gdal_translate"); err != nil {
			return nil, fmt.Errorf("gdal raster backend unavailable: %w", err)
		}
		return &GDALBackend{Runner: runner}, nil
	default:
		return nil, fmt.Errorf("unsupported raster backend %q; use 'ascii' or 'gdal'", t)
	}
}

// ASCIIBackend reads ESRI ASCII grids.
type ASCIIBackend struct{}

func (ASCIIBackend) Type() BackendType { return BackendASCII }

func (ASCIIBackend) Read(_ context.Context, path string) (*grid.Raster, error) {
	return ReadASCIIFile(path)
}

// GDALBackend reads any GDAL-supported raster by translating it to a
// temporary ASCII grid.
type GDALBackend struct {
	Runner Runner
}

func (*GDALBackend) Type() BackendType { return BackendGDAL }

func (g *GDALBackend) Read(ctx context.Context, path string) (*grid.Raster, error) {
	tmp, err := os.MkdirTemp("", "glacierfrac-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "band1.asc")
	if err := g.Runner.Run(ctx, "gdal_translate", TranslateArgs(path, out)...); err != nil {
		return nil, fmt.Errorf("translating %s: %w", path, err)
	}
	return ReadASCIIFile(out)
}

// TranslateArgs builds the gdal_translate invocation used by GDALBackend.
func TranslateArgs(src, dst string) []string {
	return []string{"-q", "-of", "AAIGrid", "-b", "1", src, dst}
}
