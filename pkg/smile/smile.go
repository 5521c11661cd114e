// Package smile corrects the per-detector shift of band centre wavelengths
// (the smile effect) using the reflectance gradient between neighbouring
// bands.
package smile

import "meriscorr/pkg/auxdata"

// Corrector applies the smile correction of one resolution.
type Corrector struct {
	table *auxdata.SmileTable
}

// New creates a corrector for the given coefficient table.
func New(table *auxdata.SmileTable) *Corrector {
	return &Corrector{table: table}
}

// Correct returns the smile corrected radiance of band. radiances holds the
// values of all spectral bands of the pixel, indexed by spectral index. The
// value passes through unchanged for an invalid detector or for bands not
// corrected over the given surface type.
func (c *Corrector) Correct(band, detector int, radiances []float64, land bool) float64 {
	value := radiances[band]
	if detector < 0 || detector >= len(c.table.DetectorWavelengths[band]) {
		return value
	}
	nominal := c.table.Bands[band]
	rule := nominal.Water
	if land {
		rule = nominal.Land
	}
	if !rule.Correct {
		return value
	}

	fluxes := c.table.DetectorSolarFluxes
	wavelengths := c.table.DetectorWavelengths

	// shift the radiance to the nominal solar flux of the band
	r0 := value * nominal.SolarFlux / fluxes[band][detector]

	span := wavelengths[rule.Upper][detector] - wavelengths[rule.Lower][detector]
	if span == 0 {
		return r0
	}
	r1 := radiances[rule.Lower] / fluxes[rule.Lower][detector]
	r2 := radiances[rule.Upper] / fluxes[rule.Upper][detector]
	dl := (nominal.Wavelength - wavelengths[band][detector]) / span
	return r0 + (r2-r1)*dl*nominal.SolarFlux
}
