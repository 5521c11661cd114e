// Package visualization renders quicklook images of corrected products.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"meriscorr/pkg/raster"
)

// Viewer renders the bands of a product as 16 bit grey images.
type Viewer struct {
	// product holds the band data to render
	product *raster.Memory

	// width and height of the product raster
	width  int
	height int
}

// NewViewer creates a viewer for a product
func NewViewer(product *raster.Memory) *Viewer {
	return &Viewer{
		product: product,
		width:   product.Width(),
		height:  product.Height(),
	}
}

// ExtractBand renders one band. Values are stretched linearly between the
// band minimum and maximum; NaN samples are black.
func (v *Viewer) ExtractBand(name string) (image.Image, error) {
	band := raster.BandIndex(v.product, name)
	if band < 0 {
		return nil, fmt.Errorf("band %q not found in product %s", name, v.product.Name())
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			value := v.product.BandValue(band, x, y)
			if math.IsNaN(value) {
				continue
			}
			lo = math.Min(lo, value)
			hi = math.Max(hi, value)
		}
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			value := v.product.BandValue(band, x, y)
			if math.IsNaN(value) {
				continue
			}
			grey := uint16(math.Max(0, math.Min(65535, (value-lo)/span*65535)))
			img.SetGray16(x, y, color.Gray16{Y: grey})
		}
	}
	return img, nil
}

// SaveImage saves a rendered band as a JPEG image
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSpectralBands renders every spectral band into outputDir and returns
// the written file names.
func (v *Viewer) SaveSpectralBands(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var files []string
	for _, b := range v.product.Bands() {
		if !b.IsSpectral() {
			continue
		}
		img, err := v.ExtractBand(b.Name)
		if err != nil {
			return files, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("quicklook_%s.jpg", b.Name))
		if err := v.SaveImage(img, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}

	return files, nil
}
