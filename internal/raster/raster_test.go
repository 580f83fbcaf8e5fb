package raster

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

const sampleGrid = `ncols 3
nrows 2
xllcorner 1000
yllcorner 2000
cellsize 25
NODATA_value -9999
1 2 3
4 -9999 6
`

func TestReadASCII(t *testing.T) {
	ras, err := ReadASCII(strings.NewReader(sampleGrid))
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	if ras.Ref.Cols != 3 || ras.Ref.Rows != 2 {
		t.Fatalf("shape = %dx%d, expected 3x2", ras.Ref.Cols, ras.Ref.Rows)
	}
	g := ras.Ref.Transform
	if g == nil {
		t.Fatal("expected a geotransform")
	}
	if g.OriginX() != 1000 || g.OriginY() != 2050 || g.PixelWidth() != 25 || g.PixelHeight() != -25 {
		t.Errorf("transform = %v", *g)
	}
	if got := ras.At(2); got != 3 {
		t.Errorf("At(2) = %v, expected 3", got)
	}
	if !ras.IsNoData(ras.At(4)) {
		t.Errorf("cell 4 should be nodata")
	}
}

func TestReadASCIICenterAndMissingTransform(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		hasGT       bool
		originX     float64
		originY     float64
		expectError bool
	}{
		{
			name:    "cell centers",
			input:   "ncols 1\nnrows 1\nxllcenter 5\nyllcenter 5\ncellsize 10\n0\n",
			hasGT:   true,
			originX: 0,
			originY: 10,
		},
		{
			name:  "no georeference",
			input: "ncols 2\nnrows 1\n0 1\n",
			hasGT: false,
		},
		{
			name:        "short data",
			input:       "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n0 1 2\n",
			expectError: true,
		},
		{
			name:        "bad value",
			input:       "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ras, err := ReadASCII(strings.NewReader(tt.input))
			if tt.expectError {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadASCII: %v", err)
			}
			if (ras.Ref.Transform != nil) != tt.hasGT {
				t.Fatalf("transform present = %v, expected %v", ras.Ref.Transform != nil, tt.hasGT)
			}
			if tt.hasGT {
				if ras.Ref.Transform.OriginX() != tt.originX || ras.Ref.Transform.OriginY() != tt.originY {
					t.Errorf("origin = (%v, %v), expected (%v, %v)",
						ras.Ref.Transform.OriginX(), ras.Ref.Transform.OriginY(), tt.originX, tt.originY)
				}
			}
		})
	}
}

func TestWriteASCIIPreservesGrid(t *testing.T) {
	ras, err := ReadASCII(strings.NewReader(sampleGrid))
	if err != nil {
		t.Fatalf("ReadASCII: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteASCII(&buf, ras); err != nil {
		t.Fatalf("WriteASCII: %v", err)
	}
	if buf.String() != sampleGrid {
		t.Errorf("WriteASCII output:\n%s\nexpected:\n%s", buf.String(), sampleGrid)
	}
}

type copyRunner struct {
	calls [][]string
}

// Run emulates gdal_translate by copying the source file to the destination.
func (c *copyRunner) Run(_ context.Context, name string, args ...string) error {
	c.calls = append(c.calls, append([]string{name}, args...))
	src, dst := args[len(args)-2], args[len(args)-1]
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0644)
}

func TestGDALBackendRead(t *testing.T) {
	dir := t.TempDir()
	src := dir + "/thickness.asc"
	if err := os.WriteFile(src, []byte(sampleGrid), 0644); err != nil {
		t.Fatal(err)
	}

	runner := &copyRunner{}
	backend := &GDALBackend{Runner: runner}
	ras, err := backend.Read(context.Background(), src)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ras.Ref.Cols != 3 {
		t.Errorf("cols = %d, expected 3", ras.Ref.Cols)
	}
	if len(runner.calls) != 1 || runner.calls[0][0] != "gdal_translate" {
		t.Fatalf("unexpected calls: %v", runner.calls)
	}
	if runner.calls[0][3] != "AAIGrid" {
		t.Errorf("output format = %s, expected AAIGrid", runner.calls[0][3])
	}
}

func TestNewBackendRejectsUnknown(t *testing.T) {
	if _, err := NewBackend("netcdf", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
	b, err := NewBackend(BackendASCII, "")
	if err != nil {
		t.Fatalf("NewBackend(ascii): %v", err)
	}
	if b.Type() != BackendASCII {
		t.Errorf("Type() = %s", b.Type())
	}
}
