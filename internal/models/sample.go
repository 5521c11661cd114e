package models

// InvalidDetector marks a pixel for which no detector specific correction
// applies.
const InvalidDetector = -1

// Bit positions in the L1b quality flag band.
const (
	InvalidFlagBit = 7
	LandFlagBit    = 4
)

// PixelSample holds the source values needed to compute every target sample
// of one pixel. A sample is built for a single pixel and never shared.
type PixelSample struct {
	// Radiances is indexed by spectral index
	Radiances []float64

	// Saturated marks radiances at or above the raw saturation threshold
	Saturated []bool

	// Detector is the detector index or InvalidDetector
	Detector int

	// Invalid and Land are the decoded quality flag bits
	Invalid bool
	Land    bool

	// SunZenith in degrees
	SunZenith float32
}

// Reset prepares the sample for reuse by the same worker.
func (s *PixelSample) Reset() {
	for i := range s.Radiances {
		s.Radiances[i] = 0
		s.Saturated[i] = false
	}
	s.Detector = InvalidDetector
	s.Invalid = false
	s.Land = false
	s.SunZenith = 0
}

// NewPixelSample allocates a sample for n spectral bands.
func NewPixelSample(n int) *PixelSample {
	return &PixelSample{
		Radiances: make([]float64, n),
		Saturated: make([]bool, n),
		Detector:  InvalidDetector,
	}
}

// SampleLayout lists which source bands the pixel routine reads. It is built
// once during initialization and not modified afterwards. Band positions
// refer to the source band list; -1 means "not read".
type SampleLayout struct {
	// Spectral maps a spectral index to the source band position
	Spectral []int

	// SpectralBands holds the source band descriptions, indexed like Spectral
	SpectralBands []Band

	DetectorBand  int
	FlagBand      int
	SunZenithBand int
}

// NeedsDetector reports whether the detector index is read.
func (l SampleLayout) NeedsDetector() bool { return l.DetectorBand >= 0 }

// NeedsFlags reports whether the quality flags are read.
func (l SampleLayout) NeedsFlags() bool { return l.FlagBand >= 0 }

// NeedsSunZenith reports whether the sun zenith angle is read.
func (l SampleLayout) NeedsSunZenith() bool { return l.SunZenithBand >= 0 }

// TargetBand describes one band of the corrected product.
type TargetBand struct {
	Name        string
	Description string
	DataType    DataType
	Unit        string

	ScalingFactor float64
	ScalingOffset float64

	// SpectralIndex is copied from the source band
	SpectralIndex int

	// SourceName is the source band this band is derived from
	SourceName string

	Wavelength float32
	Bandwidth  float32
	SolarFlux  float32

	ValidPixelExpression string
	FlagCoding           *FlagCoding

	// MinValue and MaxValue bound the geophysical values written to the band
	MinValue float64
	MaxValue float64

	// Copied is set for non-spectral bands transferred verbatim
	Copied bool
}

// Band converts the descriptor into a band definition for the target product.
func (t TargetBand) Band() Band {
	return Band{
		Name:                 t.Name,
		SpectralIndex:        t.SpectralIndex,
		DataType:             t.DataType,
		Unit:                 t.Unit,
		Description:          t.Description,
		ScalingFactor:        t.ScalingFactor,
		ScalingOffset:        t.ScalingOffset,
		Wavelength:           t.Wavelength,
		Bandwidth:            t.Bandwidth,
		SolarFlux:            t.SolarFlux,
		ValidPixelExpression: t.ValidPixelExpression,
		FlagCoding:           t.FlagCoding,
	}
}

// Clamp limits v to the band's representable range.
func (t TargetBand) Clamp(v float64) float64 {
	if v > t.MaxValue {
		return t.MaxValue
	}
	if v < t.MinValue {
		return t.MinValue
	}
	return v
}
