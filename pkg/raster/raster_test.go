package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meriscorr/internal/models"
)

func TestEncode(t *testing.T) {
	radiance := models.Band{Name: "radiance_1", DataType: models.TypeUint16, ScalingFactor: 0.01}
	tests := []struct {
		name  string
		band  models.Band
		value float64
		want  float64
	}{
		{"scaled and rounded", radiance, 12.345, 1235},
		{"saturates high", radiance, 1e6, 65535},
		{"saturates low", radiance, -5, 0},
		{"nan becomes zero", radiance, math.NaN(), 0},
		{"signed", models.Band{DataType: models.TypeInt16}, -1, -1},
		{"float32 precision", models.Band{DataType: models.TypeFloat32, ScalingFactor: 1}, 0.1, float64(float32(0.1))},
		{"float64 untouched", models.Band{DataType: models.TypeFloat64}, 0.1, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.band, tt.value))
		})
	}
}

func TestMemoryBandAccess(t *testing.T) {
	m := NewMemory("P", "MER_RR__1P", 3, 2)
	rad := m.AddBand(models.Band{Name: "radiance_1", SpectralIndex: 0, DataType: models.TypeUint16, ScalingFactor: 0.5})
	flags := m.AddBand(models.Band{Name: models.FlagsBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeUint8})

	m.SetBandValue(rad, 2, 1, 10)
	assert.Equal(t, 20.0, m.Raw(rad, 2, 1))
	assert.Equal(t, 10.0, m.BandValue(rad, 2, 1))

	m.SetRaw(flags, 0, 0, 1<<models.LandFlagBit|1)
	assert.True(t, m.BitFlag(flags, 0, 0, models.LandFlagBit))
	assert.True(t, m.BitFlag(flags, 0, 0, 0))
	assert.False(t, m.BitFlag(flags, 0, 0, models.InvalidFlagBit))

	assert.Equal(t, rad, BandIndex(m, "radiance_1"))
	assert.Equal(t, -1, BandIndex(m, "radiance_2"))

	_, ok := m.StartTime()
	assert.False(t, ok)
}

func TestMetadataLookup(t *testing.T) {
	root := NewMetadataElement("metadata")
	mph := root.AddElement(NewMetadataElement("MPH"))
	mph.SetAttribute("SOFTWARE_VER", "  MERIS/5.05 ")

	v, ok := root.Lookup("MPH/SOFTWARE_VER")
	assert.True(t, ok)
	assert.Equal(t, "MERIS/5.05", v)

	_, ok = root.Lookup("SPH/SOFTWARE_VER")
	assert.False(t, ok)
	_, ok = root.Lookup("MPH/PRODUCT")
	assert.False(t, ok)

	c := root.Clone()
	c.Element("MPH").SetAttribute("SOFTWARE_VER", "MERIS/4.10")
	v, _ = root.Lookup("MPH/SOFTWARE_VER")
	assert.Equal(t, "MERIS/5.05", v)
}

func TestProductRoundTrip(t *testing.T) {
	start := time.Date(2008, 3, 1, 9, 30, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	m := NewMemory("MER_RR__1PTEST", "MER_RR__1P", 4, 3)
	m.SetTimes(&start, &end)
	m.SetDescription("test product")
	m.Metadata().AddElement(NewMetadataElement("MPH")).SetAttribute("SOFTWARE_VER", "MERIS/4.10")

	rad := m.AddBand(models.Band{Name: "radiance_3", SpectralIndex: 2, DataType: models.TypeUint16, ScalingFactor: 0.01, Wavelength: 489.9, SolarFlux: 1926.6})
	det := m.AddBand(models.Band{Name: models.DetectorIndexBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeInt16})
	sza := m.AddBand(models.Band{Name: models.SunZenithBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeFloat32, Unit: "deg"})
	flags := m.AddBand(models.Band{
		Name:          models.FlagsBandName,
		SpectralIndex: models.NotSpectral,
		DataType:      models.TypeUint8,
		FlagCoding:    &models.FlagCoding{Name: models.FlagsBandName, Flags: map[string]uint32{"LAND": 16}},
	})
	m.Fill(rad, func(x, y int) float64 { return 50 + float64(x) })
	m.Fill(det, func(x, y int) float64 { return float64(x - 1) })
	m.Fill(sza, func(x, y int) float64 { return 33.3 })
	m.Fill(flags, func(x, y int) float64 { return 16 })

	dir := filepath.Join(t.TempDir(), "product")
	require.NoError(t, WriteProduct(dir, m))
	_, err := os.Stat(filepath.Join(dir, ManifestName))
	require.NoError(t, err)

	got, err := ReadProduct(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Name(), got.Name())
	assert.Equal(t, m.Description(), got.Description())
	assert.Equal(t, m.Bands(), got.Bands())
	for i := range m.Bands() {
		assert.Equal(t, m.BandData(i), got.BandData(i), m.Bands()[i].Name)
	}

	gotStart, ok := got.StartTime()
	require.True(t, ok)
	assert.True(t, start.Equal(gotStart))
	v, ok := got.Metadata().Lookup("MPH/SOFTWARE_VER")
	assert.True(t, ok)
	assert.Equal(t, "MERIS/4.10", v)
}

func TestReadProductErrors(t *testing.T) {
	_, err := ReadProduct(t.TempDir())
	assert.Error(t, err)

	dir := t.TempDir()
	manifest := "name: broken\nproductType: MER_RR__1P\nwidth: 2\nheight: 2\nbands:\n  - name: radiance_1\n    file: radiance_1.bin\n    dataType: uint16\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "radiance_1.bin"), []byte{1, 0, 2}, 0644))
	_, err = ReadProduct(dir)
	assert.ErrorContains(t, err, "radiance_1")
}
