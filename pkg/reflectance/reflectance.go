// Package reflectance converts top-of-atmosphere radiance into reflectance.
package reflectance

import "math"

// ToReflectance returns π·radiance / (solarFlux · cos(sunZenith)) with the
// sun zenith angle given in degrees. The result is rounded to single
// precision, the resolution of the instrument data.
func ToReflectance(radiance, sunZenith, solarFlux float32) float32 {
	cosZ := math.Cos(float64(sunZenith) * math.Pi / 180)
	return float32(float64(radiance) * math.Pi / (float64(solarFlux) * cosZ))
}
