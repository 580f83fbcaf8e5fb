package grid

import (
	"errors"
	"math"
	"testing"
)

func TestReferenceBoundingBox(t *testing.T) {
	tests := []struct {
		name     string
		ref      Reference
		expected BoundingBox
		res      Resolution
	}{
		{
			name: "north-up grid",
			ref: Reference{
				Transform: &GeoTransform{940000, 25, 0, 6460000, 0, -25},
				Cols:      4,
				Rows:      3,
			},
			expected: BoundingBox{XMin: 940000, YMin: 6459925, XMax: 940100, YMax: 6460000},
			res:      Resolution{X: 25, Y: 25},
		},
		{
			name: "rotated grid",
			ref: Reference{
				Transform: &GeoTransform{0, 10, 1, 100, 2, -10},
				Cols:      5,
				Rows:      4,
			},
			expected: BoundingBox{XMin: 0, YMin: 100 + 2*5 - 10*4, XMax: 10*5 + 1*4, YMax: 100},
			res:      Resolution{X: 10, Y: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb, err := tt.ref.BoundingBox()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bb != tt.expected {
				t.Errorf("BoundingBox() = %+v, expected %+v", bb, tt.expected)
			}
			res, err := tt.ref.Resolution()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(res.X-tt.res.X) > 1e-9 || math.Abs(res.Y-tt.res.Y) > 1e-9 {
				t.Errorf("Resolution() = %+v, expected %+v", res, tt.res)
			}
		})
	}
}

func TestReferenceWithoutTransform(t *testing.T) {
	ref := Reference{Cols: 2, Rows: 2}
	if _, err := ref.BoundingBox(); !errors.Is(err, ErrNoGeoTransform) {
		t.Errorf("BoundingBox() error = %v, expected ErrNoGeoTransform", err)
	}
	if _, err := ref.Resolution(); !errors.Is(err, ErrNoGeoTransform) {
		t.Errorf("Resolution() error = %v, expected ErrNoGeoTransform", err)
	}
}

func TestRasterAccess(t *testing.T) {
	ref := Reference{Transform: &GeoTransform{0, 1, 0, 2, 0, -1}, Cols: 3, Rows: 2}
	r, err := NewRaster(ref, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	if got := r.At(4); got != 5 {
		t.Errorf("At(4) = %v, expected 5", got)
	}
	vals := r.Values()
	for i, v := range vals {
		if v != float64(i+1) {
			t.Errorf("Values()[%d] = %v, expected %v", i, v, i+1)
		}
	}

	if _, err := NewRaster(ref, []float64{1, 2}); err == nil {
		t.Error("expected error for short data")
	}
}
