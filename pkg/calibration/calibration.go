// Package calibration re-calibrates 2nd reprocessing radiances to the
// radiometry of the 3rd reprocessing.
package calibration

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/interp"

	"meriscorr/internal/models"
	"meriscorr/pkg/auxdata"
)

// RawSaturationThreshold is the raw count at and above which a sample is
// considered saturated and left uncalibrated.
const RawSaturationThreshold = 65435.0

var mjd2000 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// MJD2000 converts a time into fractional days since 2000-01-01.
func MJD2000(t time.Time) float64 {
	return t.Sub(mjd2000).Hours() / 24
}

// CenterTime returns the midpoint of an acquisition.
func CenterTime(start, end time.Time) time.Time {
	return start.Add(end.Sub(start) / 2)
}

// Calibrator multiplies radiances by the inverse source gain and the target
// gain of their band and detector. Both gains are interpolated in time to the
// acquisition centre once, when the calibrator is built.
type Calibrator struct {
	factors [][]float64
	mjd     float64
}

// New evaluates both gain tables at centre and precomputes the correction
// factor of every band and detector.
func New(source, target *auxdata.GainTable, centre time.Time) (*Calibrator, error) {
	if source.Resolution != target.Resolution {
		return nil, fmt.Errorf("gain tables differ in resolution: %s vs %s", source.Resolution, target.Resolution)
	}
	mjd := MJD2000(centre)
	srcGains, err := gainsAt(source, mjd)
	if err != nil {
		return nil, fmt.Errorf("source gains: %w", err)
	}
	tgtGains, err := gainsAt(target, mjd)
	if err != nil {
		return nil, fmt.Errorf("target gains: %w", err)
	}

	factors := make([][]float64, models.SpectralBandCount)
	for b := range factors {
		factors[b] = make([]float64, source.Detectors())
		for d := range factors[b] {
			if srcGains[b][d] == 0 {
				return nil, fmt.Errorf("source gain of band %d detector %d is zero", b, d)
			}
			factors[b][d] = tgtGains[b][d] / srcGains[b][d]
		}
	}
	return &Calibrator{factors: factors, mjd: mjd}, nil
}

// gainsAt interpolates the gain of every band and detector linearly between
// the table epochs. Outside the covered period the nearest epoch applies.
func gainsAt(t *auxdata.GainTable, mjd float64) ([][]float64, error) {
	out := make([][]float64, models.SpectralBandCount)
	ys := make([]float64, len(t.Epochs))
	var pl interp.PiecewiseLinear
	for b := range out {
		out[b] = make([]float64, t.Detectors())
		for d := range out[b] {
			if len(t.Epochs) == 1 {
				out[b][d] = t.Gain(0, b, d)
				continue
			}
			for e := range t.Epochs {
				ys[e] = t.Gain(e, b, d)
			}
			if err := pl.Fit(t.Epochs, ys); err != nil {
				return nil, err
			}
			out[b][d] = pl.Predict(mjd)
		}
	}
	return out, nil
}

// MJD is the acquisition centre the calibrator was built for.
func (c *Calibrator) MJD() float64 {
	return c.mjd
}

// Factor returns the multiplicative correction of a band and detector.
func (c *Calibrator) Factor(band, detector int) float64 {
	return c.factors[band][detector]
}

// Calibrate corrects one radiance value. Detectors outside the table pass
// through unchanged.
func (c *Calibrator) Calibrate(band, detector int, value float64) float64 {
	if detector < 0 || band < 0 || band >= len(c.factors) || detector >= len(c.factors[band]) {
		return value
	}
	return value * c.factors[band][detector]
}
