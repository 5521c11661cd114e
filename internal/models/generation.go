package models

import (
	"fmt"
	"strings"
)

// Generation classifies which radiometric reprocessing produced a product.
type Generation int

const (
	// GenerationUndetermined doubles as the "auto" request: detection has not
	// run yet or was inconclusive.
	GenerationUndetermined Generation = iota

	// GenerationLegacy covers products older than the 2nd reprocessing.
	// They are not supported.
	GenerationLegacy

	Generation2
	Generation3
)

func (g Generation) String() string {
	switch g {
	case GenerationUndetermined:
		return "auto"
	case GenerationLegacy:
		return "legacy"
	case Generation2:
		return "generation-2"
	case Generation3:
		return "generation-3"
	}
	return fmt.Sprintf("Generation(%d)", int(g))
}

// ParseGeneration accepts the values allowed as a configuration override:
// "auto", "generation-2" and "generation-3" (short forms "2" and "3" too).
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "auto_detect":
		return GenerationUndetermined, nil
	case "generation-2", "2", "reprocessing_2":
		return Generation2, nil
	case "generation-3", "3", "reprocessing_3":
		return Generation3, nil
	}
	return GenerationUndetermined, fmt.Errorf("unsupported processing generation %q", s)
}

// Resolution is the spatial resolution mode of the instrument.
type Resolution int

const (
	ReducedResolution Resolution = iota
	FullResolution
)

func (r Resolution) String() string {
	if r == ReducedResolution {
		return "RR"
	}
	return "FR"
}

// Detectors is the number of detector elements across track.
func (r Resolution) Detectors() int {
	if r == ReducedResolution {
		return 925
	}
	return 3700
}

// ParseResolution accepts "RR" or "FR".
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RR":
		return ReducedResolution, nil
	case "FR":
		return FullResolution, nil
	}
	return ReducedResolution, fmt.Errorf("unknown resolution %q", s)
}

// ResolutionFromProductType derives the resolution from a product type
// token; anything that is not a reduced resolution type is treated as full
// resolution.
func ResolutionFromProductType(productType string) Resolution {
	if strings.Contains(productType, "RR") {
		return ReducedResolution
	}
	return FullResolution
}
