// Package schema derives the band layout of the corrected product from the
// source bands and the enabled stages.
package schema

import (
	"strings"

	"meriscorr/internal/models"
)

const (
	ReflectanceUnit        = "dl"
	ReflectanceSuffix      = "_REFL"
	ReflectanceGroup       = "reflec"
	RadianceGroup          = "radiance"
	ProductDescription     = "MERIS L1b Radiometric Correction"
	ReflectanceDescription = "Radiometry-corrected TOA reflectance"
	RadianceDescription    = "Radiometry-corrected TOA radiance"
)

// maxRawCount is the raw value whose scaled form bounds the corrected values.
const maxRawCount = 0xFFFF

// Schema is the layout of the corrected product.
type Schema struct {
	ProductType  string
	Description  string
	AutoGrouping string

	// Bands lists the spectral target bands in source order followed by the
	// non-spectral bands copied verbatim
	Bands []models.TargetBand
}

// Build derives the target layout. With toReflectance set, radiance bands
// become float32 reflectance bands named "reflec_N"; otherwise they keep the
// source encoding.
func Build(productType string, source []models.Band, toReflectance bool) *Schema {
	s := &Schema{Description: ProductDescription}
	if toReflectance {
		s.ProductType = productType + ReflectanceSuffix
		s.AutoGrouping = ReflectanceGroup
	} else {
		s.ProductType = productType
		s.AutoGrouping = RadianceGroup
	}

	names := map[string]bool{}
	for _, b := range source {
		if !b.IsSpectral() {
			continue
		}
		t := models.TargetBand{
			SpectralIndex:        b.SpectralIndex,
			SourceName:           b.Name,
			Wavelength:           b.Wavelength,
			Bandwidth:            b.Bandwidth,
			SolarFlux:            b.SolarFlux,
			ValidPixelExpression: b.ValidPixelExpression,
		}
		if toReflectance {
			t.Name = strings.Replace(b.Name, "radiance", "reflec", 1)
			t.Description = ReflectanceDescription
			t.DataType = models.TypeFloat32
			t.Unit = ReflectanceUnit
			t.ScalingFactor = 1
			t.ScalingOffset = 0
		} else {
			t.Name = b.Name
			t.Description = RadianceDescription
			t.DataType = b.DataType
			t.Unit = b.Unit
			t.ScalingFactor = b.ScalingFactor
			t.ScalingOffset = b.ScalingOffset
		}
		t.MinValue, t.MaxValue = valueRange(t)
		names[t.Name] = true
		s.Bands = append(s.Bands, t)
	}

	for _, b := range source {
		if b.IsSpectral() || names[b.Name] {
			continue
		}
		t := models.TargetBand{
			Name:                 b.Name,
			Description:          b.Description,
			DataType:             b.DataType,
			Unit:                 b.Unit,
			ScalingFactor:        b.ScalingFactor,
			ScalingOffset:        b.ScalingOffset,
			SpectralIndex:        models.NotSpectral,
			SourceName:           b.Name,
			ValidPixelExpression: b.ValidPixelExpression,
			FlagCoding:           b.FlagCoding,
			Copied:               true,
		}
		lo, hi := b.DataType.Range()
		t.MinValue, t.MaxValue = b.Scale(lo), b.Scale(hi)
		names[t.Name] = true
		s.Bands = append(s.Bands, t)
	}
	return s
}

// valueRange bounds a corrected band: the scaled 16 bit maximum count on
// top and the smallest value of the encoding at the bottom.
func valueRange(t models.TargetBand) (min, max float64) {
	b := t.Band()
	max = b.Scale(maxRawCount)
	lo, _ := t.DataType.Range()
	if t.DataType.IsFloat() {
		return lo, max
	}
	return b.Scale(lo), max
}

// Spectral returns the spectral target bands.
func (s *Schema) Spectral() []models.TargetBand {
	var out []models.TargetBand
	for _, b := range s.Bands {
		if !b.Copied {
			out = append(out, b)
		}
	}
	return out
}

// Band returns the target band with the given name.
func (s *Schema) Band(name string) (models.TargetBand, bool) {
	for _, b := range s.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return models.TargetBand{}, false
}
