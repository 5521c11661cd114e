// Package detect classifies the processing generation of a source product
// and checks the preconditions of the enabled correction stages before any
// pixel is processed.
package detect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"meriscorr/internal/models"
	"meriscorr/pkg/raster"
)

// ValidationError reports a source product that cannot be processed with
// the requested configuration.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid source product: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Stages selects the correction stages.
type Stages struct {
	Calibrate             bool
	SmileCorrect          bool
	Equalize              bool
	RadianceToReflectance bool
}

// NeedsDetector reports whether any enabled stage works per detector.
func (s Stages) NeedsDetector() bool {
	return s.Calibrate || s.SmileCorrect || s.Equalize
}

// State is the outcome of the detection step.
type State struct {
	// Detected is the generation of the source product
	Detected models.Generation

	// Effective is the generation whose equalization tables apply. It is
	// generation-3 whenever calibration runs.
	Effective models.Generation

	Resolution models.Resolution

	// Stages are the stages that will run; calibration may have been
	// switched off
	Stages Stages

	Warnings []string
}

var (
	l1bTypePattern  = regexp.MustCompile(`^MER_(RR|FR|FRS|FSG|RRG)_(_|B)?1P`)
	racNamePattern  = regexp.MustCompile(`MER_RAC_AXV\w{3}(\d{8}_\d{6})`)
	softwarePattern = regexp.MustCompile(`MERIS/(\d+)\.(\d+)`)

	generation2Start = time.Date(2005, 7, 8, 0, 0, 0, 0, time.UTC)
	generation3Start = time.Date(2009, 10, 16, 0, 0, 0, 0, time.UTC)
)

// Detect validates src for the requested stages and classifies it. hint is
// the configured generation; GenerationUndetermined requests auto-detection.
func Detect(src raster.Source, hint models.Generation, stages Stages, logger *zap.Logger) (*State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st := &State{Stages: stages, Resolution: models.ResolutionFromProductType(src.ProductType())}

	if !l1bTypePattern.MatchString(src.ProductType()) {
		logger.Warn("source product is not a MERIS L1b product", zap.String("productType", src.ProductType()))
	}

	st.Detected = hint
	if hint == models.GenerationUndetermined {
		st.Detected = DetectGeneration(src.Metadata())
	}
	switch st.Detected {
	case models.GenerationLegacy:
		return nil, invalid("product is older than the 2nd reprocessing; use data from a more recent reprocessing")
	case models.GenerationUndetermined:
		return nil, invalid("processing generation could not be detected")
	}
	st.Effective = st.Detected

	if st.Stages.Calibrate && st.Detected != models.Generation2 {
		msg := "skipping calibration, source product is already of the 3rd reprocessing"
		logger.Warn(msg)
		st.Warnings = append(st.Warnings, msg)
		st.Stages.Calibrate = false
	}
	if st.Stages.Calibrate {
		st.Effective = models.Generation3
	}

	if err := checkTimes(src, st.Stages); err != nil {
		return nil, err
	}
	if err := checkBands(src, st.Stages); err != nil {
		return nil, err
	}

	logger.Info("source product classified",
		zap.String("generation", st.Detected.String()),
		zap.String("effectiveGeneration", st.Effective.String()),
		zap.String("resolution", st.Resolution.String()))
	return st, nil
}

func checkTimes(src raster.Accessor, stages Stages) error {
	if stages.Calibrate || stages.Equalize {
		if _, ok := src.StartTime(); !ok {
			return invalid("product must have a start time")
		}
	}
	if stages.Calibrate {
		if _, ok := src.EndTime(); !ok {
			return invalid("product must have an end time")
		}
	}
	return nil
}

func checkBands(src raster.Accessor, stages Stages) error {
	bands := src.Bands()
	if err := checkSpectralIndices(bands); err != nil {
		return err
	}
	find := func(name string) *models.Band {
		for i := range bands {
			if bands[i].Name == name {
				return &bands[i]
			}
		}
		return nil
	}
	require := func(name string) (*models.Band, error) {
		if b := find(name); b != nil {
			return b, nil
		}
		return nil, invalid("product must contain '%s'", name)
	}

	if stages.NeedsDetector() {
		if _, err := require(models.DetectorIndexBandName); err != nil {
			return err
		}
		for _, b := range bands {
			if b.IsSpectral() && b.SpectralIndex >= models.SpectralBandCount {
				return invalid("band '%s' has spectral index %d, at most %d bands are supported", b.Name, b.SpectralIndex, models.SpectralBandCount)
			}
		}
	}
	if stages.SmileCorrect {
		flags, err := require(models.FlagsBandName)
		if err != nil {
			return err
		}
		if !flags.IsFlagBand() {
			return invalid("flag coding is missing for band '%s'", models.FlagsBandName)
		}
		present := make([]bool, models.SpectralBandCount)
		for _, b := range bands {
			if b.IsSpectral() && b.SpectralIndex < models.SpectralBandCount {
				present[b.SpectralIndex] = true
			}
		}
		for i, ok := range present {
			if !ok {
				return invalid("smile correction needs all spectral bands, '%s' is missing", models.RadianceBandName(i))
			}
		}
	}
	if stages.RadianceToReflectance {
		if _, err := require(models.SunZenithBandName); err != nil {
			return err
		}
	}
	return nil
}

// checkSpectralIndices rejects negative and shared spectral indices, which
// would make the per-pixel band vector ambiguous.
func checkSpectralIndices(bands []models.Band) error {
	owner := map[int]string{}
	for _, b := range bands {
		if !b.IsSpectral() {
			continue
		}
		if b.SpectralIndex < 0 {
			return invalid("band '%s' has invalid spectral index %d", b.Name, b.SpectralIndex)
		}
		if other, ok := owner[b.SpectralIndex]; ok {
			return invalid("bands '%s' and '%s' share spectral index %d", other, b.Name, b.SpectralIndex)
		}
		owner[b.SpectralIndex] = b.Name
	}
	return nil
}

// DetectGeneration inspects the metadata for generation markers. It looks at
// the radiometric calibration file recorded in the DSD list first and at the
// processor software version second.
func DetectGeneration(root *raster.MetadataElement) models.Generation {
	if name := calibrationFileName(root); name != "" {
		if m := racNamePattern.FindStringSubmatch(name); m != nil {
			if created, err := time.Parse("20060102_150405", m[1]); err == nil {
				switch {
				case created.Before(generation2Start):
					return models.GenerationLegacy
				case created.Before(generation3Start):
					return models.Generation2
				default:
					return models.Generation3
				}
			}
		}
	}
	if version, ok := root.Lookup("MPH/SOFTWARE_VER"); ok {
		if m := softwarePattern.FindStringSubmatch(version); m != nil {
			major, _ := strconv.Atoi(m[1])
			switch {
			case major < 4:
				return models.GenerationLegacy
			case major == 4:
				return models.Generation2
			default:
				return models.Generation3
			}
		}
	}
	return models.GenerationUndetermined
}

func calibrationFileName(root *raster.MetadataElement) string {
	dsd := root.Element("DSD")
	if dsd == nil {
		return ""
	}
	if name, ok := dsd.Lookup("DSD.23/FILE_NAME"); ok && strings.HasPrefix(name, "MER_RAC") {
		return name
	}
	for _, e := range dsd.Elements {
		if ds, _ := e.Attribute("DATASET_NAME"); ds == "RADIOMETRIC_CALIBRATION_FILE" {
			name, _ := e.Attribute("FILE_NAME")
			return name
		}
	}
	return ""
}
