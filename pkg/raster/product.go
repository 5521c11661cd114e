package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"meriscorr/internal/models"
)

// ManifestName is the file describing a product directory.
const ManifestName = "manifest.yaml"

// Manifest is the YAML header of a product directory. Band samples live next
// to it in raw little-endian files, one per band.
type Manifest struct {
	Name         string           `yaml:"name"`
	ProductType  string           `yaml:"productType"`
	Description  string           `yaml:"description,omitempty"`
	AutoGrouping string           `yaml:"autoGrouping,omitempty"`
	Width        int              `yaml:"width"`
	Height       int              `yaml:"height"`
	StartTime    *time.Time       `yaml:"startTime,omitempty"`
	EndTime      *time.Time       `yaml:"endTime,omitempty"`
	Bands        []BandManifest   `yaml:"bands"`
	Metadata     *MetadataElement `yaml:"metadata,omitempty"`
}

// BandManifest is the on-disk form of models.Band.
type BandManifest struct {
	Name                 string             `yaml:"name"`
	File                 string             `yaml:"file"`
	SpectralIndex        *int               `yaml:"spectralIndex,omitempty"`
	DataType             string             `yaml:"dataType"`
	Unit                 string             `yaml:"unit,omitempty"`
	Description          string             `yaml:"description,omitempty"`
	ScalingFactor        float64            `yaml:"scalingFactor,omitempty"`
	ScalingOffset        float64            `yaml:"scalingOffset,omitempty"`
	Wavelength           float32            `yaml:"wavelength,omitempty"`
	Bandwidth            float32            `yaml:"bandwidth,omitempty"`
	SolarFlux            float32            `yaml:"solarFlux,omitempty"`
	ValidPixelExpression string             `yaml:"validPixelExpression,omitempty"`
	FlagCoding           *models.FlagCoding `yaml:"flagCoding,omitempty"`
}

func (bm BandManifest) band() (models.Band, error) {
	dt, err := models.ParseDataType(bm.DataType)
	if err != nil {
		return models.Band{}, fmt.Errorf("band %s: %w", bm.Name, err)
	}
	spectral := models.NotSpectral
	if bm.SpectralIndex != nil {
		spectral = *bm.SpectralIndex
	}
	return models.Band{
		Name:                 bm.Name,
		SpectralIndex:        spectral,
		DataType:             dt,
		Unit:                 bm.Unit,
		Description:          bm.Description,
		ScalingFactor:        bm.ScalingFactor,
		ScalingOffset:        bm.ScalingOffset,
		Wavelength:           bm.Wavelength,
		Bandwidth:            bm.Bandwidth,
		SolarFlux:            bm.SolarFlux,
		ValidPixelExpression: bm.ValidPixelExpression,
		FlagCoding:           bm.FlagCoding,
	}, nil
}

func bandManifest(b models.Band) BandManifest {
	bm := BandManifest{
		Name:                 b.Name,
		File:                 b.Name + ".bin",
		DataType:             b.DataType.String(),
		Unit:                 b.Unit,
		Description:          b.Description,
		ScalingFactor:        b.ScalingFactor,
		ScalingOffset:        b.ScalingOffset,
		Wavelength:           b.Wavelength,
		Bandwidth:            b.Bandwidth,
		SolarFlux:            b.SolarFlux,
		ValidPixelExpression: b.ValidPixelExpression,
		FlagCoding:           b.FlagCoding,
	}
	if b.IsSpectral() {
		idx := b.SpectralIndex
		bm.SpectralIndex = &idx
	}
	return bm
}

// ReadProduct loads a product directory into memory.
func ReadProduct(dir string) (*Memory, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	if mf.Width <= 0 || mf.Height <= 0 {
		return nil, fmt.Errorf("invalid product size %dx%d", mf.Width, mf.Height)
	}

	m := NewMemory(mf.Name, mf.ProductType, mf.Width, mf.Height)
	m.SetDescription(mf.Description)
	m.SetAutoGrouping(mf.AutoGrouping)
	m.SetTimes(mf.StartTime, mf.EndTime)
	if mf.Metadata != nil {
		m.SetMetadata(mf.Metadata)
	}
	for _, bm := range mf.Bands {
		b, err := bm.band()
		if err != nil {
			return nil, err
		}
		idx := m.AddBand(b)
		if err := readBandFile(filepath.Join(dir, bm.File), b.DataType, m.BandData(idx)); err != nil {
			return nil, fmt.Errorf("error reading band %s: %w", b.Name, err)
		}
	}
	return m, nil
}

// WriteProduct stores a product as a directory, creating it if needed.
func WriteProduct(dir string, m *Memory) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating product directory: %w", err)
	}

	mf := Manifest{
		Name:         m.Name(),
		ProductType:  m.ProductType(),
		Description:  m.Description(),
		AutoGrouping: m.AutoGrouping(),
		Width:        m.Width(),
		Height:       m.Height(),
		Metadata:     m.Metadata(),
	}
	if t, ok := m.StartTime(); ok {
		mf.StartTime = &t
	}
	if t, ok := m.EndTime(); ok {
		mf.EndTime = &t
	}
	for i, b := range m.Bands() {
		bm := bandManifest(b)
		mf.Bands = append(mf.Bands, bm)
		if err := writeBandFile(filepath.Join(dir, bm.File), b.DataType, m.BandData(i)); err != nil {
			return fmt.Errorf("error writing band %s: %w", b.Name, err)
		}
	}

	data, err := yaml.Marshal(&mf)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

func readBandFile(path string, dt models.DataType, dst []float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	buf := make([]byte, dt.Size())
	for i := range dst {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		dst[i] = decodeSample(dt, buf)
	}
	return nil
}

func writeBandFile(path string, dt models.DataType, src []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, dt.Size())
	for _, v := range src {
		encodeSample(dt, v, buf)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

func decodeSample(dt models.DataType, b []byte) float64 {
	le := binary.LittleEndian
	switch dt {
	case models.TypeInt8:
		return float64(int8(b[0]))
	case models.TypeUint8:
		return float64(b[0])
	case models.TypeInt16:
		return float64(int16(le.Uint16(b)))
	case models.TypeUint16:
		return float64(le.Uint16(b))
	case models.TypeInt32:
		return float64(int32(le.Uint32(b)))
	case models.TypeUint32:
		return float64(le.Uint32(b))
	case models.TypeFloat32:
		return float64(math.Float32frombits(le.Uint32(b)))
	default:
		return math.Float64frombits(le.Uint64(b))
	}
}

func encodeSample(dt models.DataType, v float64, b []byte) {
	le := binary.LittleEndian
	switch dt {
	case models.TypeInt8:
		b[0] = byte(int8(v))
	case models.TypeUint8:
		b[0] = uint8(v)
	case models.TypeInt16:
		le.PutUint16(b, uint16(int16(v)))
	case models.TypeUint16:
		le.PutUint16(b, uint16(v))
	case models.TypeInt32:
		le.PutUint32(b, uint32(int32(v)))
	case models.TypeUint32:
		le.PutUint32(b, uint32(v))
	case models.TypeFloat32:
		le.PutUint32(b, math.Float32bits(float32(v)))
	default:
		le.PutUint64(b, math.Float64bits(v))
	}
}
