// Package testutil provides shared test fixtures: synthetic MERIS L1b
// products with controllable content and processing history.
package testutil

import (
	"time"

	"meriscorr/internal/models"
	"meriscorr/pkg/raster"
)

// Nominal band properties used for synthetic products.
var (
	NominalWavelengths = []float32{412.691, 442.559, 489.882, 509.819, 559.694, 619.601, 664.573, 680.821, 708.329, 753.371, 761.508, 778.409, 864.876, 884.944, 900.000}
	NominalSolarFluxes = []float32{1714.9, 1872.4, 1926.6, 1930.2, 1804.2, 1651.5, 1531.4, 1475.6, 1408.9, 1265.5, 1255.4, 1178.0, 955.5, 914.2, 882.8}
)

// RadianceScaling is the scaling factor of synthetic radiance bands.
const RadianceScaling = 0.01

// Calibration file names recorded in the metadata of each generation.
const (
	LegacyCalibrationFile      = "MER_RAC_AXVIEC20030101_000000_20021224_121445_20041213_220000"
	Generation2CalibrationFile = "MER_RAC_AXVIEC20050708_135553_20021224_121445_20041213_220000"
	Generation3CalibrationFile = "MER_RAC_AXVACR20091016_154511_20021224_121445_20041213_220000"
)

// ProductOptions controls NewL1bProduct. Zero values select defaults.
type ProductOptions struct {
	Width, Height int
	ProductType   string

	// Generation selects the calibration file recorded in the metadata;
	// GenerationUndetermined records none.
	Generation models.Generation

	OmitStart     bool
	OmitEnd       bool
	OmitDetector  bool
	OmitFlags     bool
	OmitFlagCode  bool
	OmitSunZenith bool

	// SpectralBands limits the number of radiance bands
	SpectralBands int

	// SpectralIndex overrides the spectral index recorded for radiance band i
	SpectralIndex func(i int) int

	// Radiance returns the geophysical radiance of a band at a pixel
	Radiance  func(band, x, y int) float64
	Detector  func(x, y int) int
	Flags     func(x, y int) uint32
	SunZenith func(x, y int) float64
}

// StartTime is the acquisition start of synthetic products.
var StartTime = time.Date(2006, 6, 1, 10, 0, 0, 0, time.UTC)

// NewL1bProduct builds a synthetic L1b product. The acquisition spans 500ms.
func NewL1bProduct(opts ProductOptions) *raster.Memory {
	if opts.Width == 0 {
		opts.Width = 8
	}
	if opts.Height == 0 {
		opts.Height = 6
	}
	if opts.ProductType == "" {
		opts.ProductType = "MER_RR__1P"
	}
	if opts.SpectralBands == 0 {
		opts.SpectralBands = models.SpectralBandCount
	}
	if opts.Radiance == nil {
		opts.Radiance = func(band, x, y int) float64 { return 60 - 2*float64(band) + 0.5*float64(x) + 0.25*float64(y) }
	}
	if opts.Detector == nil {
		opts.Detector = func(x, y int) int { return x * 101 % 925 }
	}
	if opts.Flags == nil {
		opts.Flags = func(x, y int) uint32 { return 0 }
	}
	if opts.SpectralIndex == nil {
		opts.SpectralIndex = func(i int) int { return i }
	}
	if opts.SunZenith == nil {
		opts.SunZenith = func(x, y int) float64 { return 30 + float64(y) }
	}

	p := raster.NewMemory("MER_RR__1PTEST", opts.ProductType, opts.Width, opts.Height)

	start := StartTime
	end := start.Add(500 * time.Millisecond)
	var sp, ep *time.Time
	if !opts.OmitStart {
		sp = &start
	}
	if !opts.OmitEnd {
		ep = &end
	}
	p.SetTimes(sp, ep)
	p.SetMetadata(metadataFor(opts.Generation))

	for i := 0; i < opts.SpectralBands; i++ {
		band := i
		idx := p.AddBand(models.Band{
			Name:                 models.RadianceBandName(i),
			SpectralIndex:        opts.SpectralIndex(i),
			DataType:             models.TypeUint16,
			Unit:                 "mW/(m^2*sr*nm)",
			Description:          "TOA radiance band",
			ScalingFactor:        RadianceScaling,
			Wavelength:           NominalWavelengths[i],
			Bandwidth:            10,
			SolarFlux:            NominalSolarFluxes[i],
			ValidPixelExpression: "!l1_flags.INVALID",
		})
		p.Fill(idx, func(x, y int) float64 { return opts.Radiance(band, x, y) })
	}
	if !opts.OmitFlags {
		b := models.Band{Name: models.FlagsBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeUint8}
		if !opts.OmitFlagCode {
			b.FlagCoding = &models.FlagCoding{Name: models.FlagsBandName, Flags: map[string]uint32{
				"LAND":    1 << models.LandFlagBit,
				"INVALID": 1 << models.InvalidFlagBit,
			}}
		}
		idx := p.AddBand(b)
		p.Fill(idx, func(x, y int) float64 { return float64(opts.Flags(x, y)) })
	}
	if !opts.OmitDetector {
		idx := p.AddBand(models.Band{Name: models.DetectorIndexBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeInt16})
		p.Fill(idx, func(x, y int) float64 { return float64(opts.Detector(x, y)) })
	}
	if !opts.OmitSunZenith {
		idx := p.AddBand(models.Band{Name: models.SunZenithBandName, SpectralIndex: models.NotSpectral, DataType: models.TypeFloat32, Unit: "deg"})
		p.Fill(idx, opts.SunZenith)
	}
	return p
}

func metadataFor(gen models.Generation) *raster.MetadataElement {
	root := raster.NewMetadataElement("metadata")
	mph := root.AddElement(raster.NewMetadataElement("MPH"))
	mph.SetAttribute("PRODUCT", "MER_RR__1PTEST")

	var file string
	switch gen {
	case models.GenerationLegacy:
		file = LegacyCalibrationFile
	case models.Generation2:
		file = Generation2CalibrationFile
	case models.Generation3:
		file = Generation3CalibrationFile
	default:
		return root
	}
	dsd := root.AddElement(raster.NewMetadataElement("DSD"))
	dsd23 := dsd.AddElement(raster.NewMetadataElement("DSD.23"))
	dsd23.SetAttribute("DATASET_NAME", "RADIOMETRIC_CALIBRATION_FILE")
	dsd23.SetAttribute("FILE_NAME", file)
	return root
}
