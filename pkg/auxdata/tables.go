package auxdata

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"meriscorr/internal/models"
)

// GainTable holds the radiometric gains of one calibration file for one
// resolution. Gains are known at a small number of epochs (MJD2000 days).
type GainTable struct {
	Name       string
	Resolution models.Resolution
	Epochs     []float64

	// gains is indexed [epoch][band][detector]
	gains [][][]float64
}

// Gain returns the gain of a band and detector at the epoch with index e.
func (t *GainTable) Gain(e, band, detector int) float64 {
	return t.gains[e][band][detector]
}

// Detectors is the number of detectors covered by the table.
func (t *GainTable) Detectors() int {
	return len(t.gains[0][0])
}

type gainFile struct {
	Name        string `yaml:"name"`
	Resolutions []struct {
		Resolution string `yaml:"resolution"`
		Epochs     []struct {
			MJD   float64 `yaml:"mjd"`
			Gains []Ramp  `yaml:"gains"`
		} `yaml:"epochs"`
	} `yaml:"resolutions"`
}

// ParseGainTable reads the section of a calibration file that matches res.
func ParseGainTable(r io.Reader, res models.Resolution) (*GainTable, error) {
	var f gainFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding calibration table")
	}
	for _, section := range f.Resolutions {
		sr, err := models.ParseResolution(section.Resolution)
		if err != nil {
			return nil, err
		}
		if sr != res {
			continue
		}
		if len(section.Epochs) == 0 {
			return nil, errors.Errorf("calibration table %s has no epochs for %s", f.Name, res)
		}
		sort.SliceStable(section.Epochs, func(i, j int) bool {
			return section.Epochs[i].MJD < section.Epochs[j].MJD
		})
		t := &GainTable{Name: f.Name, Resolution: res}
		for i, e := range section.Epochs {
			if i > 0 && e.MJD == t.Epochs[i-1] {
				return nil, errors.Errorf("calibration table %s: duplicate epoch %g", f.Name, e.MJD)
			}
			grid, err := fillGrid(e.Gains, models.SpectralBandCount, res.Detectors())
			if err != nil {
				return nil, errors.Wrapf(err, "calibration table %s epoch %g", f.Name, e.MJD)
			}
			t.Epochs = append(t.Epochs, e.MJD)
			t.gains = append(t.gains, grid)
		}
		return t, nil
	}
	return nil, errors.Errorf("calibration table %s has no %s section", f.Name, res)
}

// SmileRule tells whether a band is smile corrected for one surface type
// and which neighbouring bands span the reflectance gradient.
type SmileRule struct {
	Correct bool `yaml:"correct"`
	Lower   int  `yaml:"lower"`
	Upper   int  `yaml:"upper"`
}

// SmileBand carries the nominal spectral properties of a band.
type SmileBand struct {
	Band       int       `yaml:"band"`
	Wavelength float64   `yaml:"wavelength"`
	SolarFlux  float64   `yaml:"solarFlux"`
	Land       SmileRule `yaml:"land"`
	Water      SmileRule `yaml:"water"`
}

// SmileTable holds the smile correction coefficients for one resolution.
type SmileTable struct {
	Resolution models.Resolution
	Bands      []SmileBand

	// DetectorWavelengths and DetectorSolarFluxes are indexed [band][detector]
	DetectorWavelengths [][]float64
	DetectorSolarFluxes [][]float64
}

type smileFile struct {
	Resolution          string      `yaml:"resolution"`
	Bands               []SmileBand `yaml:"bands"`
	DetectorWavelengths []Ramp      `yaml:"detectorWavelengths"`
	DetectorSolarFluxes []Ramp      `yaml:"detectorSolarFluxes"`
}

// ParseSmileTable decodes a smile coefficient table.
func ParseSmileTable(r io.Reader) (*SmileTable, error) {
	var f smileFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding smile table")
	}
	res, err := models.ParseResolution(f.Resolution)
	if err != nil {
		return nil, err
	}
	t := &SmileTable{Resolution: res, Bands: make([]SmileBand, models.SpectralBandCount)}
	seen := make([]bool, models.SpectralBandCount)
	for _, b := range f.Bands {
		if b.Band < 0 || b.Band >= models.SpectralBandCount {
			return nil, errors.Errorf("smile table: band %d out of range", b.Band)
		}
		for _, rule := range []SmileRule{b.Land, b.Water} {
			if !rule.Correct {
				continue
			}
			if !validBand(rule.Lower) || !validBand(rule.Upper) || rule.Lower == rule.Upper {
				return nil, errors.Errorf("smile table: band %d has invalid neighbours %d/%d", b.Band, rule.Lower, rule.Upper)
			}
		}
		if b.SolarFlux <= 0 {
			return nil, errors.Errorf("smile table: band %d has no solar flux", b.Band)
		}
		t.Bands[b.Band] = b
		seen[b.Band] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, errors.Errorf("smile table: band %d missing", i)
		}
	}
	if t.DetectorWavelengths, err = fillGrid(f.DetectorWavelengths, models.SpectralBandCount, res.Detectors()); err != nil {
		return nil, errors.Wrap(err, "smile table detector wavelengths")
	}
	if t.DetectorSolarFluxes, err = fillGrid(f.DetectorSolarFluxes, models.SpectralBandCount, res.Detectors()); err != nil {
		return nil, errors.Wrap(err, "smile table detector solar fluxes")
	}
	for b := range t.DetectorSolarFluxes {
		for d, v := range t.DetectorSolarFluxes[b] {
			if v <= 0 {
				return nil, errors.Errorf("smile table: non-positive solar flux for band %d detector %d", b, d)
			}
		}
	}
	return t, nil
}

func validBand(i int) bool {
	return i >= 0 && i < models.SpectralBandCount
}

// EqualizationTable holds the quadratic equalization coefficients of one
// reprocessing generation and resolution.
type EqualizationTable struct {
	Resolution models.Resolution
	Generation models.Generation

	c0, c1, c2 [][]float64
}

// Coefficients returns c0, c1 and c2 of a band and detector.
func (t *EqualizationTable) Coefficients(band, detector int) (c0, c1, c2 float64) {
	return t.c0[band][detector], t.c1[band][detector], t.c2[band][detector]
}

type equalizationFile struct {
	Resolution string `yaml:"resolution"`
	Generation string `yaml:"generation"`
	C0         []Ramp `yaml:"c0"`
	C1         []Ramp `yaml:"c1"`
	C2         []Ramp `yaml:"c2"`
}

// ParseEqualizationTable decodes an equalization coefficient table.
func ParseEqualizationTable(r io.Reader) (*EqualizationTable, error) {
	var f equalizationFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding equalization table")
	}
	res, err := models.ParseResolution(f.Resolution)
	if err != nil {
		return nil, err
	}
	gen, err := models.ParseGeneration(f.Generation)
	if err != nil {
		return nil, err
	}
	t := &EqualizationTable{Resolution: res, Generation: gen}
	n := models.SpectralBandCount
	if t.c0, err = fillGrid(f.C0, n, res.Detectors()); err != nil {
		return nil, errors.Wrap(err, "equalization c0")
	}
	if t.c1, err = fillGrid(f.C1, n, res.Detectors()); err != nil {
		return nil, errors.Wrap(err, "equalization c1")
	}
	if t.c2, err = fillGrid(f.C2, n, res.Detectors()); err != nil {
		return nil, errors.Wrap(err, "equalization c2")
	}
	return t, nil
}
