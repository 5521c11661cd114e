// Package equalization removes residual detector-to-detector radiometric
// differences.
package equalization

import (
	"time"

	"meriscorr/pkg/auxdata"
)

// ReferenceJulianDay is the origin of the time axis of the equalization
// coefficients.
const ReferenceJulianDay = 2452400.0

// JulianDay converts a time into a Julian day number.
func JulianDay(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + 2440587.5
}

// Equalizer divides values by a detector specific, time dependent
// coefficient cEq = c0 + c1*t + c2*t².
type Equalizer struct {
	table *auxdata.EqualizationTable
	days  float64
}

// New creates an equalizer for a product acquired at start.
func New(table *auxdata.EqualizationTable, start time.Time) *Equalizer {
	return &Equalizer{table: table, days: JulianDay(start) - ReferenceJulianDay}
}

// Days is the time argument used in the coefficient polynomial.
func (e *Equalizer) Days() float64 {
	return e.days
}

// Equalize corrects value. Invalid detectors and a vanishing coefficient
// leave the value unchanged.
func (e *Equalizer) Equalize(value float64, band, detector int) float64 {
	if detector < 0 || detector >= e.table.Resolution.Detectors() {
		return value
	}
	c0, c1, c2 := e.table.Coefficients(band, detector)
	t := e.days
	cEq := c0 + c1*t + c2*t*t
	if cEq == 0 {
		return value
	}
	return value / cEq
}
