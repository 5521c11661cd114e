package models

import (
	"fmt"
	"math"
	"strings"
)

// NotSpectral is the spectral index of bands that carry no radiance, such as
// flags, detector indices or geometry.
const NotSpectral = -1

// SpectralBandCount is the number of spectral bands of the instrument.
const SpectralBandCount = 15

// Well-known band names of a MERIS L1b product.
const (
	DetectorIndexBandName = "detector_index"
	FlagsBandName         = "l1_flags"
	SunZenithBandName     = "sun_zenith"
)

// RadianceBandName returns the name of the radiance band with the given
// zero-based spectral index.
func RadianceBandName(spectralIndex int) string {
	return fmt.Sprintf("radiance_%d", spectralIndex+1)
}

// DataType is the storage encoding of a band's raw samples.
type DataType int

const (
	TypeInt8 DataType = iota
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeFloat32
	TypeFloat64
)

var dataTypeNames = []string{"int8", "uint8", "int16", "uint16", "int32", "uint32", "float32", "float64"}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// ParseDataType converts a type name such as "uint16" into a DataType.
func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeNames {
		if strings.EqualFold(s, name) {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// Size is the number of bytes used to encode one sample.
func (t DataType) Size() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether the type is a floating point encoding.
func (t DataType) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Range returns the smallest and largest raw value the encoding can hold.
func (t DataType) Range() (min, max float64) {
	switch t {
	case TypeInt8:
		return math.MinInt8, math.MaxInt8
	case TypeUint8:
		return 0, math.MaxUint8
	case TypeInt16:
		return math.MinInt16, math.MaxInt16
	case TypeUint16:
		return 0, math.MaxUint16
	case TypeInt32:
		return math.MinInt32, math.MaxInt32
	case TypeUint32:
		return 0, math.MaxUint32
	case TypeFloat32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// FlagCoding names the bits of a flag band.
type FlagCoding struct {
	// Name identifies the coding, usually the name of the flag band
	Name string `yaml:"name"`

	// Flags maps a flag name to its bit mask
	Flags map[string]uint32 `yaml:"flags"`
}

// Band describes one raster band of a product. Bands are owned by the
// product; the correction pipeline only reads them.
type Band struct {
	// Name is the unique band name within its product
	Name string

	// SpectralIndex is the zero-based spectral band index, or NotSpectral
	SpectralIndex int

	// DataType is the encoding of the raw samples
	DataType DataType

	// Unit of the geophysical value, e.g. "mW/(m^2*sr*nm)" or "dl"
	Unit string

	// Description is a free text description
	Description string

	// ScalingFactor and ScalingOffset convert raw samples into geophysical
	// values: geo = raw*ScalingFactor + ScalingOffset
	ScalingFactor float64
	ScalingOffset float64

	// Spectral properties; only meaningful for spectral bands
	Wavelength float32
	Bandwidth  float32
	SolarFlux  float32

	// ValidPixelExpression is carried over to the target without evaluation
	ValidPixelExpression string

	// FlagCoding is set for flag bands only
	FlagCoding *FlagCoding
}

// IsSpectral reports whether the band holds spectral radiance.
func (b Band) IsSpectral() bool {
	return b.SpectralIndex != NotSpectral
}

// IsFlagBand reports whether the band has a flag coding attached.
func (b Band) IsFlagBand() bool {
	return b.FlagCoding != nil
}

func (b Band) factor() float64 {
	if b.ScalingFactor == 0 {
		return 1
	}
	return b.ScalingFactor
}

// Scale converts a raw sample into its geophysical value.
func (b Band) Scale(raw float64) float64 {
	return raw*b.factor() + b.ScalingOffset
}

// Unscale converts a geophysical value back into the raw domain.
func (b Band) Unscale(geo float64) float64 {
	return (geo - b.ScalingOffset) / b.factor()
}
