package auxdata

import (
	"math"

	"github.com/pkg/errors"
)

// Ramp assigns values to a contiguous detector range of one band. With one
// value the range is constant; with two the value varies linearly from the
// first to the last detector of the range.
type Ramp struct {
	Band      int       `yaml:"band"`
	Detectors []int     `yaml:"detectors"`
	Value     []float64 `yaml:"value"`
}

func (r Ramp) validate(bands, detectors int) error {
	if r.Band < 0 || r.Band >= bands {
		return errors.Errorf("band %d out of range [0,%d)", r.Band, bands)
	}
	if len(r.Detectors) != 2 {
		return errors.Errorf("band %d: detector range needs two bounds, got %d", r.Band, len(r.Detectors))
	}
	first, last := r.Detectors[0], r.Detectors[1]
	if first < 0 || last >= detectors || first > last {
		return errors.Errorf("band %d: detector range [%d,%d] outside [0,%d)", r.Band, first, last, detectors)
	}
	if len(r.Value) != 1 && len(r.Value) != 2 {
		return errors.Errorf("band %d: expected one or two values, got %d", r.Band, len(r.Value))
	}
	return nil
}

func (r Ramp) at(detector int) float64 {
	if len(r.Value) == 1 || r.Detectors[0] == r.Detectors[1] {
		return r.Value[0]
	}
	t := float64(detector-r.Detectors[0]) / float64(r.Detectors[1]-r.Detectors[0])
	return r.Value[0] + t*(r.Value[1]-r.Value[0])
}

// fillGrid expands ramps into a dense [band][detector] grid. Every cell must
// be covered by at least one ramp; later ramps override earlier ones.
func fillGrid(rows []Ramp, bands, detectors int) ([][]float64, error) {
	grid := make([][]float64, bands)
	for b := range grid {
		grid[b] = make([]float64, detectors)
		for d := range grid[b] {
			grid[b][d] = math.NaN()
		}
	}
	for i, r := range rows {
		if err := r.validate(bands, detectors); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		for d := r.Detectors[0]; d <= r.Detectors[1]; d++ {
			grid[r.Band][d] = r.at(d)
		}
	}
	for b := range grid {
		for d, v := range grid[b] {
			if math.IsNaN(v) {
				return nil, errors.Errorf("no value for band %d detector %d", b, d)
			}
		}
	}
	return grid, nil
}
