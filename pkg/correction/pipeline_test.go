package correction

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"meriscorr/internal/models"
	"meriscorr/internal/testutil"
	"meriscorr/pkg/auxdata"
	"meriscorr/pkg/detect"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
	"meriscorr/pkg/reflectance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var allStages = detect.Stages{Calibrate: true, SmileCorrect: true, Equalize: true, RadianceToReflectance: true}

func run(t *testing.T, src *raster.Memory, params Params) (*Pipeline, *raster.Memory) {
	t.Helper()
	if params.Logger == nil {
		params.Logger = zaptest.NewLogger(t)
	}
	p, err := NewPipeline(src, params)
	require.NoError(t, err)
	dst := p.NewTarget()
	require.NoError(t, p.Run(context.Background(), dst))
	return p, dst
}

func totals(t *testing.T, r *metrics.Recorder) metrics.Totals {
	t.Helper()
	got, err := r.Totals()
	require.NoError(t, err)
	return got
}

func TestAllStagesProduceReflectanceProduct(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2})
	rec := metrics.NewRecorder()
	p, dst := run(t, src, Params{Stages: allStages, NumWorkers: 3, TileHeight: 2, Metrics: rec})

	assert.Equal(t, models.Generation2, p.State().Detected)
	assert.Equal(t, models.Generation3, p.State().Effective)
	assert.True(t, p.State().Stages.Calibrate)

	assert.Equal(t, "MER_RR__1P_REFL", dst.ProductType())
	assert.Equal(t, "reflec", dst.AutoGrouping())
	require.Len(t, dst.Bands(), len(src.Bands()))

	for i, b := range dst.Bands() {
		tb := p.Schema().Bands[i]
		if b.IsSpectral() {
			assert.Equal(t, strings.Replace(models.RadianceBandName(b.SpectralIndex), "radiance", "reflec", 1), b.Name)
			assert.Equal(t, "dl", b.Unit)
			assert.Equal(t, models.TypeFloat32, b.DataType)
			for y := 0; y < dst.Height(); y++ {
				for x := 0; x < dst.Width(); x++ {
					v := dst.BandValue(i, x, y)
					assert.False(t, math.IsNaN(v))
					assert.Greater(t, v, 0.0)
					assert.LessOrEqual(t, v, tb.MaxValue)
				}
			}
			continue
		}
		srcIdx := raster.BandIndex(src, b.Name)
		require.GreaterOrEqual(t, srcIdx, 0, b.Name)
		assert.Equal(t, src.BandData(srcIdx), dst.BandData(i), b.Name)
	}

	start, ok := dst.StartTime()
	require.True(t, ok)
	assert.Equal(t, testutil.StartTime, start)
	assert.Equal(t, src.Width()*src.Height(), totals(t, rec).Pixels)
}

func TestCalibrationSkippedForGeneration3(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation3})
	core, logs := observer.New(zap.WarnLevel)
	p, dst := run(t, src, Params{Stages: detect.Stages{Calibrate: true}, Logger: zap.New(core)})

	assert.False(t, p.State().Stages.Calibrate)
	assert.Len(t, p.State().Warnings, 1)
	assert.Equal(t, 1, logs.FilterMessageSnippet("skipping calibration").Len())
	assert.Equal(t, "MER_RR__1P", dst.ProductType())
	assert.Equal(t, "radiance", dst.AutoGrouping())

	for b := 0; b < models.SpectralBandCount; b++ {
		assert.Equal(t, src.BandData(b), dst.BandData(b), models.RadianceBandName(b))
	}
}

func TestCalibrationSkippedKeepsReflectanceSchema(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation3})
	p, dst := run(t, src, Params{Stages: detect.Stages{Calibrate: true, RadianceToReflectance: true}})

	assert.False(t, p.State().Stages.Calibrate)
	assert.Equal(t, "reflec_1", dst.Bands()[0].Name)
	assert.Equal(t, "MER_RR__1P_REFL", dst.ProductType())
}

func TestValidationFailsBeforeProcessing(t *testing.T) {
	tests := []struct {
		name   string
		opts   testutil.ProductOptions
		stages detect.Stages
	}{
		{"missing sun zenith", testutil.ProductOptions{Generation: models.Generation2, OmitSunZenith: true}, detect.Stages{RadianceToReflectance: true}},
		{"missing start with calibration", testutil.ProductOptions{Generation: models.Generation2, OmitStart: true}, detect.Stages{Calibrate: true}},
		{"missing start with equalization", testutil.ProductOptions{Generation: models.Generation2, OmitStart: true}, detect.Stages{Equalize: true}},
		{"missing end with calibration", testutil.ProductOptions{Generation: models.Generation2, OmitEnd: true}, detect.Stages{Calibrate: true}},
		{"missing detector", testutil.ProductOptions{Generation: models.Generation2, OmitDetector: true}, detect.Stages{Equalize: true}},
		{"missing flag coding", testutil.ProductOptions{Generation: models.Generation2, OmitFlagCode: true}, detect.Stages{SmileCorrect: true}},
		{"legacy product", testutil.ProductOptions{Generation: models.GenerationLegacy}, detect.Stages{Equalize: true}},
		{"undetermined generation", testutil.ProductOptions{}, detect.Stages{Equalize: true}},
		{"negative spectral index", testutil.ProductOptions{Generation: models.Generation2, SpectralIndex: func(i int) int { return i - 2 }}, detect.Stages{RadianceToReflectance: true}},
		{"shared spectral index", testutil.ProductOptions{Generation: models.Generation2, SpectralIndex: func(i int) int { return i / 2 }}, detect.Stages{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewL1bProduct(tt.opts)
			p, err := NewPipeline(src, Params{Stages: tt.stages, Logger: zaptest.NewLogger(t)})
			assert.Nil(t, p)
			var verr *detect.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestMissingCalibrationFile(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2})
	_, err := NewPipeline(src, Params{
		Stages:                detect.Stages{Calibrate: true},
		SourceCalibrationFile: "/nonexistent/MER_RAC_AXVIEC.yaml",
		Logger:                zaptest.NewLogger(t),
	})
	var aerr *auxdata.AuxiliaryDataError
	require.True(t, errors.As(err, &aerr), "got %v", err)
	assert.Equal(t, "/nonexistent/MER_RAC_AXVIEC.yaml", aerr.Resource)
	assert.False(t, aerr.Internal)
}

func TestInvalidDetectorPassesThrough(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{
		Generation: models.Generation2,
		Detector: func(x, y int) int {
			if x == 0 {
				return models.InvalidDetector
			}
			return x * 101 % 925
		},
	})
	rec := metrics.NewRecorder()
	_, dst := run(t, src, Params{
		Stages:  detect.Stages{Calibrate: true, SmileCorrect: true, Equalize: true},
		Metrics: rec,
	})

	for b := 0; b < models.SpectralBandCount; b++ {
		for y := 0; y < src.Height(); y++ {
			assert.Equal(t, src.Raw(b, 0, y), dst.Raw(b, 0, y), "band %d row %d", b, y)
		}
	}
	assert.Equal(t, src.Height(), totals(t, rec).InvalidDetector)
}

func TestCalibrationAppliesFactorAndSkipsSaturation(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{
		Generation: models.Generation2,
		Radiance: func(band, x, y int) float64 {
			if band == 0 && x == 1 {
				return 655
			}
			return 60 - 2*float64(band) + 0.5*float64(x)
		},
	})
	rec := metrics.NewRecorder()
	p, dst := run(t, src, Params{Stages: detect.Stages{Calibrate: true}, Metrics: rec})
	cal := p.Processor().Calibrator
	require.NotNil(t, cal)

	det := raster.BandIndex(src, models.DetectorIndexBandName)
	for b := 0; b < models.SpectralBandCount; b++ {
		for y := 0; y < src.Height(); y++ {
			for x := 0; x < src.Width(); x++ {
				v := src.BandValue(b, x, y)
				if b == 0 && x == 1 {
					assert.Equal(t, src.Raw(b, x, y), dst.Raw(b, x, y))
					continue
				}
				d := int(src.BandValue(det, x, y))
				want := raster.Encode(dst.Bands()[b], v*cal.Factor(b, d))
				assert.Equal(t, want, dst.Raw(b, x, y), "band %d pixel %d,%d", b, x, y)
			}
		}
	}
	assert.Equal(t, src.Height(), totals(t, rec).Saturated)
}

func TestCalibrationIsIdempotentForGeneration3(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation3})
	with, a := run(t, src, Params{Stages: detect.Stages{Calibrate: true, SmileCorrect: true, Equalize: true}})
	without, b := run(t, src, Params{Stages: detect.Stages{SmileCorrect: true, Equalize: true}})

	assert.Equal(t, models.Generation3, with.State().Effective)
	assert.Equal(t, without.State(), &detect.State{
		Detected:   models.Generation3,
		Effective:  models.Generation3,
		Resolution: models.ReducedResolution,
		Stages:     detect.Stages{SmileCorrect: true, Equalize: true},
	})
	for i := range a.Bands() {
		if diff := cmp.Diff(b.BandData(i), a.BandData(i)); diff != "" {
			t.Errorf("band %s differs (-without +with):\n%s", a.Bands()[i].Name, diff)
		}
	}
}

func TestResultIndependentOfTiling(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2, Width: 13, Height: 11})
	_, serial := run(t, src, Params{Stages: allStages, NumWorkers: 1, TileHeight: 100})
	_, parallel := run(t, src, Params{Stages: allStages, NumWorkers: 4, TileHeight: 3})

	for i := range serial.Bands() {
		if diff := cmp.Diff(serial.BandData(i), parallel.BandData(i)); diff != "" {
			t.Errorf("band %s differs:\n%s", serial.Bands()[i].Name, diff)
		}
	}
}

func TestInvalidFlagSkipsSmileOnly(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{
		Generation: models.Generation2,
		Flags: func(x, y int) uint32 {
			if y == 0 {
				return 1 << models.InvalidFlagBit
			}
			return 0
		},
	})
	rec := metrics.NewRecorder()
	p, dst := run(t, src, Params{Stages: detect.Stages{SmileCorrect: true}, Metrics: rec})
	require.Nil(t, p.Processor().Calibrator)

	for b := 0; b < models.SpectralBandCount; b++ {
		for x := 0; x < src.Width(); x++ {
			assert.Equal(t, src.Raw(b, x, 0), dst.Raw(b, x, 0))
		}
	}
	assert.Equal(t, src.Width(), totals(t, rec).InvalidFlag)
}

func TestComputeSampleClamps(t *testing.T) {
	proc := NewProcessor(models.SampleLayout{
		Spectral:      []int{0},
		SpectralBands: []models.Band{{Name: "radiance_1", DataType: models.TypeUint16, ScalingFactor: 1}},
		DetectorBand:  -1,
		FlagBand:      -1,
		SunZenithBand: -1,
	}, nil, nil, nil, false)
	target := models.TargetBand{Name: "radiance_1", MinValue: 0, MaxValue: 5}
	s := models.NewPixelSample(1)

	s.Radiances[0] = 10
	assert.Equal(t, 5.0, proc.ComputeSample(s, target))
	s.Radiances[0] = -3
	assert.Equal(t, 0.0, proc.ComputeSample(s, target))
	s.Radiances[0] = 2.5
	assert.Equal(t, 2.5, proc.ComputeSample(s, target))
}

func TestRunCancelled(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2})
	rec := metrics.NewRecorder()
	p, err := NewPipeline(src, Params{Stages: allStages, Metrics: rec, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := p.NewTarget()
	err = p.Run(ctx, dst)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, totals(t, rec).Cancelled)
	for i := range dst.Bands() {
		for _, v := range dst.BandData(i) {
			require.Zero(t, v)
		}
	}
}

func TestBuildLayoutReadsOnlyNeededBands(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2})

	l := BuildLayout(src.Bands(), detect.Stages{})
	assert.False(t, l.NeedsDetector())
	assert.False(t, l.NeedsFlags())
	assert.False(t, l.NeedsSunZenith())
	assert.Len(t, l.Spectral, models.SpectralBandCount)

	l = BuildLayout(src.Bands(), allStages)
	assert.Equal(t, raster.BandIndex(src, models.DetectorIndexBandName), l.DetectorBand)
	assert.Equal(t, raster.BandIndex(src, models.FlagsBandName), l.FlagBand)
	assert.Equal(t, raster.BandIndex(src, models.SunZenithBandName), l.SunZenithBand)
}

func TestStagesApplyInOrder(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{
		Generation: models.Generation2,
		Flags: func(x, y int) uint32 {
			if y%2 == 1 {
				return 1 << models.LandFlagBit
			}
			return 0
		},
	})
	p, dst := run(t, src, Params{Stages: allStages})
	proc := p.Processor()
	require.NotNil(t, proc.Calibrator)
	require.NotNil(t, proc.Smile)
	require.NotNil(t, proc.Equalizer)

	det := raster.BandIndex(src, models.DetectorIndexBandName)
	flags := raster.BandIndex(src, models.FlagsBandName)
	sza := raster.BandIndex(src, models.SunZenithBandName)
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			d := int(src.BandValue(det, x, y))
			land := src.BitFlag(flags, x, y, models.LandFlagBit)
			calibrated := make([]float64, models.SpectralBandCount)
			for b := range calibrated {
				calibrated[b] = proc.Calibrator.Calibrate(b, d, src.BandValue(b, x, y))
			}
			for i, tb := range p.Schema().Spectral() {
				v := proc.Smile.Correct(tb.SpectralIndex, d, calibrated, land)
				r := reflectance.ToReflectance(float32(v), float32(src.BandValue(sza, x, y)), tb.SolarFlux)
				want := tb.Clamp(proc.Equalizer.Equalize(float64(r), tb.SpectralIndex, d))
				assert.Equal(t, raster.Encode(tb.Band(), want), dst.Raw(i, x, y), "%s pixel %d,%d", tb.Name, x, y)
			}
		}
	}
}

// cancelOnLastSample cancels a context once the last sample of the product
// has been written.
type cancelOnLastSample struct {
	*raster.Memory
	cancel context.CancelFunc
}

func (w *cancelOnLastSample) SetBandValue(band, x, y int, value float64) {
	w.Memory.SetBandValue(band, x, y, value)
	if band == len(w.Bands())-1 && x == w.Width()-1 && y == w.Height()-1 {
		w.cancel()
	}
}

func TestRunCompleteDespiteLateCancel(t *testing.T) {
	src := testutil.NewL1bProduct(testutil.ProductOptions{Generation: models.Generation2})
	rec := metrics.NewRecorder()
	p, err := NewPipeline(src, Params{Stages: allStages, NumWorkers: 1, TileHeight: 2, Metrics: rec, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dst := &cancelOnLastSample{Memory: p.NewTarget(), cancel: cancel}

	require.NoError(t, p.Run(ctx, dst))
	assert.Error(t, ctx.Err())
	assert.Equal(t, 0, totals(t, rec).Cancelled)
	assert.Equal(t, src.Width()*src.Height(), totals(t, rec).Pixels)
}
