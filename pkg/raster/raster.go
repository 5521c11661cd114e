// Package raster defines the narrow capabilities the correction pipeline
// needs from a product container, plus an in-memory implementation and a
// simple on-disk product directory format.
package raster

import (
	"time"

	"meriscorr/internal/models"
)

// Accessor is the read side of a raster product. Band positions are indices
// into the slice returned by Bands. Values are geophysical (scaled).
type Accessor interface {
	BandValue(band, x, y int) float64
	BitFlag(band, x, y, bit int) bool
	Bands() []models.Band
	StartTime() (time.Time, bool)
	EndTime() (time.Time, bool)
}

// Writer is the write side of a raster product. Values are geophysical and
// are encoded into the band's storage type by the implementation.
type Writer interface {
	SetBandValue(band, x, y int, value float64)
}

// Source is an Accessor that also exposes the product level information used
// to validate and classify the input.
type Source interface {
	Accessor
	Name() string
	ProductType() string
	Width() int
	Height() int
	Metadata() *MetadataElement
}

// BandIndex returns the position of the named band, or -1.
func BandIndex(a Accessor, name string) int {
	for i, b := range a.Bands() {
		if b.Name == name {
			return i
		}
	}
	return -1
}
