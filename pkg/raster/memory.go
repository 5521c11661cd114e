package raster

import (
	"fmt"
	"math"
	"time"

	"meriscorr/internal/models"
)

// Memory is a product held entirely in memory. Samples are stored raw (in
// the band's encoding domain) as float64. Concurrent writers are safe as long
// as they write disjoint pixels.
type Memory struct {
	name        string
	productType string
	description string
	autoGroup   string
	width       int
	height      int
	bands       []models.Band
	data        [][]float64
	start       *time.Time
	end         *time.Time
	metadata    *MetadataElement
}

// NewMemory creates an empty product of the given size.
func NewMemory(name, productType string, width, height int) *Memory {
	return &Memory{
		name:        name,
		productType: productType,
		width:       width,
		height:      height,
		metadata:    NewMetadataElement("metadata"),
	}
}

// AddBand appends a band with all samples set to zero and returns its position.
func (m *Memory) AddBand(b models.Band) int {
	m.bands = append(m.bands, b)
	m.data = append(m.data, make([]float64, m.width*m.height))
	return len(m.bands) - 1
}

func (m *Memory) Name() string        { return m.name }
func (m *Memory) ProductType() string { return m.productType }
func (m *Memory) Width() int          { return m.width }
func (m *Memory) Height() int         { return m.height }

// Bands returns the band definitions. The slice must not be modified.
func (m *Memory) Bands() []models.Band { return m.bands }

func (m *Memory) Metadata() *MetadataElement { return m.metadata }

// SetMetadata replaces the metadata tree.
func (m *Memory) SetMetadata(root *MetadataElement) { m.metadata = root }

func (m *Memory) Description() string      { return m.description }
func (m *Memory) SetDescription(d string)  { m.description = d }
func (m *Memory) AutoGrouping() string     { return m.autoGroup }
func (m *Memory) SetAutoGrouping(g string) { m.autoGroup = g }

func (m *Memory) StartTime() (time.Time, bool) {
	if m.start == nil {
		return time.Time{}, false
	}
	return *m.start, true
}

func (m *Memory) EndTime() (time.Time, bool) {
	if m.end == nil {
		return time.Time{}, false
	}
	return *m.end, true
}

// SetTimes sets the acquisition bounds; nil clears a bound.
func (m *Memory) SetTimes(start, end *time.Time) {
	m.start = start
	m.end = end
}

// Raw returns the stored raw sample.
func (m *Memory) Raw(band, x, y int) float64 {
	return m.data[band][y*m.width+x]
}

// SetRaw stores a raw sample without any conversion.
func (m *Memory) SetRaw(band, x, y int, raw float64) {
	m.data[band][y*m.width+x] = raw
}

func (m *Memory) BandValue(band, x, y int) float64 {
	return m.bands[band].Scale(m.Raw(band, x, y))
}

func (m *Memory) BitFlag(band, x, y, bit int) bool {
	return uint64(m.Raw(band, x, y))&(1<<uint(bit)) != 0
}

// SetBandValue encodes a geophysical value into the band's storage type.
// Integer encodings are rounded and saturate at the type limits.
func (m *Memory) SetBandValue(band, x, y int, value float64) {
	m.SetRaw(band, x, y, Encode(m.bands[band], value))
}

// Encode converts a geophysical value into the raw value that the band's
// encoding would store.
func Encode(b models.Band, value float64) float64 {
	raw := b.Unscale(value)
	switch b.DataType {
	case models.TypeFloat32:
		return float64(float32(raw))
	case models.TypeFloat64:
		return raw
	}
	if math.IsNaN(raw) {
		return 0
	}
	lo, hi := b.DataType.Range()
	return math.Max(lo, math.Min(hi, math.Round(raw)))
}

// Fill sets every sample of a band from a function of the pixel position.
// The function returns geophysical values.
func (m *Memory) Fill(band int, f func(x, y int) float64) {
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			m.SetBandValue(band, x, y, f(x, y))
		}
	}
}

// BandData exposes the raw samples of a band in row-major order.
func (m *Memory) BandData(band int) []float64 {
	return m.data[band]
}

func (m *Memory) String() string {
	return fmt.Sprintf("%s [%s] %dx%d, %d bands", m.name, m.productType, m.width, m.height, len(m.bands))
}
