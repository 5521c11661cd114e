package correction

import (
	"meriscorr/internal/models"
	"meriscorr/pkg/calibration"
	"meriscorr/pkg/detect"
	"meriscorr/pkg/equalization"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
	"meriscorr/pkg/reflectance"
	"meriscorr/pkg/smile"
)

// BuildLayout decides which source bands the pixel routine reads for the
// given stages.
func BuildLayout(bands []models.Band, stages detect.Stages) models.SampleLayout {
	n := 0
	for _, b := range bands {
		if b.IsSpectral() && b.SpectralIndex+1 > n {
			n = b.SpectralIndex + 1
		}
	}
	l := models.SampleLayout{
		Spectral:      make([]int, n),
		SpectralBands: make([]models.Band, n),
		DetectorBand:  -1,
		FlagBand:      -1,
		SunZenithBand: -1,
	}
	for i := range l.Spectral {
		l.Spectral[i] = -1
	}
	for i, b := range bands {
		switch {
		case b.IsSpectral() && b.SpectralIndex >= 0:
			l.Spectral[b.SpectralIndex] = i
			l.SpectralBands[b.SpectralIndex] = b
		case b.Name == models.DetectorIndexBandName && stages.NeedsDetector():
			l.DetectorBand = i
		case b.Name == models.FlagsBandName && stages.SmileCorrect:
			l.FlagBand = i
		case b.Name == models.SunZenithBandName && stages.RadianceToReflectance:
			l.SunZenithBand = i
		}
	}
	return l
}

// Processor computes target samples from a pixel's source values. A nil
// stage is disabled. Processor holds no mutable state and is shared by all
// workers.
type Processor struct {
	Layout        models.SampleLayout
	Calibrator    *calibration.Calibrator
	Smile         *smile.Corrector
	Equalizer     *equalization.Equalizer
	ToReflectance bool

	// saturation holds the scaled saturation threshold per spectral index
	saturation []float64
}

// NewProcessor wires the enabled stages to a sample layout.
func NewProcessor(layout models.SampleLayout, cal *calibration.Calibrator, sc *smile.Corrector, eq *equalization.Equalizer, toReflectance bool) *Processor {
	p := &Processor{
		Layout:        layout,
		Calibrator:    cal,
		Smile:         sc,
		Equalizer:     eq,
		ToReflectance: toReflectance,
		saturation:    make([]float64, len(layout.Spectral)),
	}
	for i, b := range layout.SpectralBands {
		p.saturation[i] = b.Scale(calibration.RawSaturationThreshold)
	}
	return p
}

// ReadSample fills s with the source values of pixel (x, y) and applies
// calibration to the whole spectral vector, so that later stages see
// calibrated neighbouring bands.
func (p *Processor) ReadSample(src raster.Accessor, x, y int, s *models.PixelSample, counts *metrics.TileCounts) {
	s.Reset()
	l := p.Layout
	for i, band := range l.Spectral {
		if band < 0 {
			continue
		}
		v := src.BandValue(band, x, y)
		s.Radiances[i] = v
		s.Saturated[i] = v >= p.saturation[i]
	}
	if l.NeedsDetector() {
		if d := int(src.BandValue(l.DetectorBand, x, y)); d >= 0 {
			s.Detector = d
		} else {
			counts.InvalidDetector++
		}
	}
	if l.NeedsFlags() {
		s.Invalid = src.BitFlag(l.FlagBand, x, y, models.InvalidFlagBit)
		s.Land = src.BitFlag(l.FlagBand, x, y, models.LandFlagBit)
		if s.Invalid {
			counts.InvalidFlag++
		}
	}
	if l.NeedsSunZenith() {
		s.SunZenith = float32(src.BandValue(l.SunZenithBand, x, y))
	}

	if p.Calibrator != nil && s.Detector != models.InvalidDetector {
		for i := range s.Radiances {
			if l.Spectral[i] < 0 {
				continue
			}
			if s.Saturated[i] {
				counts.AddSaturated(l.SpectralBands[i].Name)
				continue
			}
			s.Radiances[i] = p.Calibrator.Calibrate(i, s.Detector, s.Radiances[i])
		}
	}
}

// ComputeSample runs the remaining stages for one target band and clamps
// the result to the band's range.
func (p *Processor) ComputeSample(s *models.PixelSample, t models.TargetBand) float64 {
	band := t.SpectralIndex
	value := s.Radiances[band]
	validDetector := s.Detector != models.InvalidDetector

	if p.Smile != nil && validDetector && !s.Invalid {
		value = p.Smile.Correct(band, s.Detector, s.Radiances, s.Land)
	}
	if p.ToReflectance {
		value = float64(reflectance.ToReflectance(float32(value), s.SunZenith, t.SolarFlux))
	}
	if p.Equalizer != nil && validDetector {
		value = p.Equalizer.Equalize(value, band, s.Detector)
	}
	return t.Clamp(value)
}
