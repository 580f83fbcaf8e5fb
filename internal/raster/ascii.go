package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hydroglacier/glacierfrac/internal/grid"
)

// asciiHeader collects the ESRI ASCII grid header keywords.
type asciiHeader struct {
	ncols, nrows int
	xll, yll     *float64
	center       bool
	dx, dy       *float64
	nodata       *float64
}

// ReadASCII decodes an ESRI ASCII grid. A header without a lower-left
// corner or cell size yields a raster whose Reference has no transform.
func ReadASCII(r io.Reader) (*grid.Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	var h asciiHeader
	var pending string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if !isHeaderKey(key) {
			pending = tok
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header keyword %q has no value", tok)
		}
		if err := h.set(key, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grid header: %w", err)
	}
	if h.ncols <= 0 || h.nrows <= 0 {
		return nil, fmt.Errorf("grid header is missing ncols/nrows")
	}

	data := make([]float64, 0, h.ncols*h.nrows)
	if pending != "" {
		v, err := strconv.ParseFloat(pending, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cell value %q: %w", pending, err)
		}
		data = append(data, v)
	}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cell value %q: %w", sc.Text(), err)
		}
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grid cells: %w", err)
	}

	ras, err := grid.NewRaster(h.reference(), data)
	if err != nil {
		return nil, err
	}
	ras.NoData = h.nodata
	return ras, nil
}

// ReadASCIIFile opens and decodes an ESRI ASCII grid file.
func ReadASCIIFile(path string) (*grid.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ras, err := ReadASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ras, nil
}

// WriteASCII encodes a north-up raster as an ESRI ASCII grid.
func WriteASCII(w io.Writer, ras *grid.Raster) error {
	if ras.Ref.Transform == nil {
		return grid.ErrNoGeoTransform
	}
	g := *ras.Ref.Transform
	if g.RotX() != 0 || g.RotY() != 0 {
		return fmt.Errorf("rotated grids cannot be written as ASCII grids")
	}

	bw := bufio.NewWriter(w)
	yll := g.OriginY() + g.PixelHeight()*float64(ras.Ref.Rows)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", ras.Ref.Cols, ras.Ref.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatValue(g.OriginX()), formatValue(yll))
	if math.Abs(g.PixelWidth()) == math.Abs(g.PixelHeight()) {
		fmt.Fprintf(bw, "cellsize %s\n", formatValue(math.Abs(g.PixelWidth())))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", formatValue(math.Abs(g.PixelWidth())), formatValue(math.Abs(g.PixelHeight())))
	}
	if ras.NoData != nil {
		fmt.Fprintf(bw, "NODATA_value %s\n", formatValue(*ras.NoData))
	}

	for i := 0; i < ras.Ref.Rows; i++ {
		row := ras.Cells.RawRowView(i)
		for j, v := range row {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatValue(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteASCIIFile writes ras to path, replacing any existing file.
func WriteASCIIFile(path string, ras *grid.Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASCII(f, ras); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

func (h *asciiHeader) set(key, val string) error {
	switch key {
	case "ncols", "nrows":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, val, err)
		}
		if key == "ncols" {
			h.ncols = n
		} else {
			h.nrows = n
		}
		return nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	switch key {
	case "xllcorner", "xllcenter":
		h.xll = &f
		h.center = h.center || key == "xllcenter"
	case "yllcorner", "yllcenter":
		h.yll = &f
		h.center = h.center || key == "yllcenter"
	case "cellsize":
		h.dx, h.dy = &f, &f
	case "dx":
		h.dx = &f
	case "dy":
		h.dy = &f
	case "nodata_value":
		h.nodata = &f
	}
	return nil
}

func (h *asciiHeader) reference() grid.Reference {
	ref := grid.Reference{Cols: h.ncols, Rows: h.nrows}
	if h.xll == nil || h.yll == nil || h.dx == nil || h.dy == nil {
		return ref
	}
	x0, y0 := *h.xll, *h.yll
	if h.center {
		x0 -= *h.dx / 2
		y0 -= *h.dy / 2
	}
	ref.Transform = &grid.GeoTransform{x0, *h.dx, 0, y0 + *h.dy*float64(h.nrows), 0, -*h.dy}
	return ref
}
