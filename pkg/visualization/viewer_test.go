package visualization

import (
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"meriscorr/internal/models"
	"meriscorr/pkg/raster"
)

// gradientProduct has one spectral band rising along x and a flag band
func gradientProduct(width, height int) *raster.Memory {
	p := raster.NewMemory("TEST", "MER_RR__1P_REFL", width, height)
	band := p.AddBand(models.Band{Name: "reflec_1", SpectralIndex: 0, DataType: models.TypeFloat32, ScalingFactor: 1})
	p.Fill(band, func(x, y int) float64 { return float64(x) / float64(width-1) })
	p.AddBand(models.Band{Name: "l1_flags", SpectralIndex: models.NotSpectral, DataType: models.TypeUint8})
	return p
}

// TestExtractBand verifies the linear stretch of a band
func TestExtractBand(t *testing.T) {
	width, height := 5, 3
	viewer := NewViewer(gradientProduct(width, height))

	img, err := viewer.ExtractBand("reflec_1")
	if err != nil {
		t.Fatalf("Failed to extract band: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		t.Errorf("Expected dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
	}

	gray16Img, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("Expected *image.Gray16, got %T", img)
	}
	if got := gray16Img.Gray16At(0, 1).Y; got != 0 {
		t.Errorf("Expected black at band minimum, got %d", got)
	}
	if got := gray16Img.Gray16At(width-1, 1).Y; got != 65535 {
		t.Errorf("Expected white at band maximum, got %d", got)
	}
	mid := gray16Img.Gray16At(2, 1).Y
	if math.Abs(float64(mid)-32767.5) > 1 {
		t.Errorf("Expected mid grey at centre, got %d", mid)
	}

	if _, err := viewer.ExtractBand("radiance_1"); err == nil {
		t.Error("Expected error for unknown band, got nil")
	}
}

// TestExtractConstantBand verifies that a flat band does not divide by zero
func TestExtractConstantBand(t *testing.T) {
	p := raster.NewMemory("TEST", "MER_RR__1P", 2, 2)
	band := p.AddBand(models.Band{Name: "radiance_1", SpectralIndex: 0, DataType: models.TypeFloat32, ScalingFactor: 1})
	p.Fill(band, func(x, y int) float64 { return 42 })

	img, err := NewViewer(p).ExtractBand("radiance_1")
	if err != nil {
		t.Fatalf("Failed to extract band: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 1).Y; got != 0 {
		t.Errorf("Expected black for a constant band, got %d", got)
	}
}

// TestSaveSpectralBands verifies that one decodable JPEG is written per spectral band
func TestSaveSpectralBands(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	outputDir := filepath.Join(t.TempDir(), "quicklooks")
	files, err := NewViewer(gradientProduct(8, 4)).SaveSpectralBands(outputDir)
	if err != nil {
		t.Fatalf("Failed to save quicklooks: %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("Expected 1 quicklook, got %d", len(files))
	}
	want := filepath.Join(outputDir, "quicklook_reflec_1.jpg")
	if files[0] != want {
		t.Errorf("Expected %s, got %s", want, files[0])
	}

	f, err := os.Open(want)
	if err != nil {
		t.Fatalf("Saved file cannot be opened: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("Saved file is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Errorf("Unexpected quicklook size %v", img.Bounds())
	}
}
