// Package report summarizes a finished correction run.
package report

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"meriscorr/pkg/detect"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
)

// BandStats describes the values written to one target band.
type BandStats struct {
	Name   string  `yaml:"name"`
	Unit   string  `yaml:"unit,omitempty"`
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stdDev"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// Stages mirrors the stages that actually ran.
type Stages struct {
	Calibrate             bool `yaml:"calibrate"`
	SmileCorrect          bool `yaml:"smileCorrect"`
	Equalize              bool `yaml:"equalize"`
	RadianceToReflectance bool `yaml:"radianceToReflectance"`
}

// Report is written next to the target product.
type Report struct {
	RunID               string          `yaml:"runId"`
	Product             string          `yaml:"product"`
	ProductType         string          `yaml:"productType"`
	DetectedGeneration  string          `yaml:"detectedGeneration"`
	EffectiveGeneration string          `yaml:"effectiveGeneration"`
	Resolution          string          `yaml:"resolution"`
	Stages              Stages          `yaml:"stages"`
	Warnings            []string        `yaml:"warnings,omitempty"`
	Elapsed             time.Duration   `yaml:"elapsed"`
	Counters            *metrics.Totals `yaml:"counters,omitempty"`
	Bands               []BandStats     `yaml:"bands"`
}

// New collects statistics of the spectral bands of target. rec may be nil.
func New(runID string, state *detect.State, target *raster.Memory, rec *metrics.Recorder, elapsed time.Duration) (*Report, error) {
	r := &Report{
		RunID:               runID,
		Product:             target.Name(),
		ProductType:         target.ProductType(),
		DetectedGeneration:  state.Detected.String(),
		EffectiveGeneration: state.Effective.String(),
		Resolution:          state.Resolution.String(),
		Stages:              Stages(state.Stages),
		Warnings:            state.Warnings,
		Elapsed:             elapsed,
	}
	if rec != nil {
		totals, err := rec.Totals()
		if err != nil {
			return nil, errors.Wrap(err, "gathering counters")
		}
		r.Counters = &totals
	}
	for i, b := range target.Bands() {
		if !b.IsSpectral() {
			continue
		}
		s := Summarize(target.BandData(i), b.Scale)
		s.Name = b.Name
		s.Unit = b.Unit
		r.Bands = append(r.Bands, s)
	}
	return r, nil
}

// Summarize computes statistics of raw samples after applying scale. NaN
// values are ignored.
func Summarize(raw []float64, scale func(float64) float64) BandStats {
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		v = scale(v)
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	s := BandStats{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	return s
}

// Write stores the report as YAML.
func (r *Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing report %s", path)
}
