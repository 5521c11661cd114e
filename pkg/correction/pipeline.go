package correction

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"meriscorr/internal/models"
	"meriscorr/pkg/auxdata"
	"meriscorr/pkg/calibration"
	"meriscorr/pkg/detect"
	"meriscorr/pkg/equalization"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
	"meriscorr/pkg/schema"
	"meriscorr/pkg/smile"
)

// Default processing parameters.
const (
	DefaultTileHeight = 64

	// CancelCheckInterval is the number of pixels a worker processes between
	// two checks of the cancellation signal.
	CancelCheckInterval = 1000
)

// Params holds the correction configuration.
type Params struct {
	// Stages selects the correction stages to run. Calibration may still be
	// switched off by the detection step.
	Stages detect.Stages

	// Generation overrides generation detection unless it is
	// models.GenerationUndetermined.
	Generation models.Generation

	// SourceCalibrationFile and TargetCalibrationFile name user supplied
	// calibration tables. Empty values select the built-in tables.
	SourceCalibrationFile string
	TargetCalibrationFile string

	// NumWorkers bounds the number of tiles processed concurrently.
	// Values below 1 mean one worker.
	NumWorkers int

	// TileHeight is the number of rows per tile.
	TileHeight int

	// Loader resolves auxiliary tables; nil selects the built-in resources.
	Loader *auxdata.Loader

	// Metrics receives per tile counts; nil disables counting.
	Metrics *metrics.Recorder

	Logger *zap.Logger
}

// Pipeline is an initialized correction of one source product. Everything it
// holds is read-only after NewPipeline returns.
type Pipeline struct {
	params Params
	src    raster.Source
	logger *zap.Logger
	runID  string

	state     *detect.State
	schema    *schema.Schema
	processor *Processor

	// copied maps target band positions of verbatim copies to source band
	// positions; -1 for computed bands
	copied []int
}

// NewPipeline runs the initialization phase: detection and validation,
// auxiliary data loading, target schema and sample layout. Validation
// failures are returned as *detect.ValidationError, auxiliary data problems
// as *auxdata.AuxiliaryDataError.
func NewPipeline(src raster.Source, params Params) (*Pipeline, error) {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.NumWorkers < 1 {
		params.NumWorkers = 1
	}
	if params.TileHeight < 1 {
		params.TileHeight = DefaultTileHeight
	}
	if params.Loader == nil {
		params.Loader = auxdata.NewLoader(params.Logger)
	}

	runID := uuid.New().String()
	logger := params.Logger.With(zap.String("run", runID), zap.String("product", src.Name()))

	state, err := detect.Detect(src, params.Generation, params.Stages, logger)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		params: params,
		src:    src,
		logger: logger,
		runID:  runID,
		state:  state,
	}

	stages := state.Stages
	var (
		cal *calibration.Calibrator
		sc  *smile.Corrector
		eq  *equalization.Equalizer
	)
	start, _ := src.StartTime()
	if stages.Calibrate {
		end, _ := src.EndTime()
		source, target, err := params.Loader.LoadCalibration(params.SourceCalibrationFile, params.TargetCalibrationFile, state.Resolution)
		if err != nil {
			return nil, err
		}
		if cal, err = calibration.New(source, target, calibration.CenterTime(start, end)); err != nil {
			return nil, &auxdata.AuxiliaryDataError{Resource: target.Name, Err: err}
		}
		logger.Debug("calibration tables loaded",
			zap.String("source", source.Name),
			zap.String("target", target.Name),
			zap.Float64("mjd2000", cal.MJD()))
	}
	if stages.SmileCorrect {
		table, err := params.Loader.LoadSmile(state.Resolution)
		if err != nil {
			return nil, err
		}
		sc = smile.New(table)
	}
	if stages.Equalize {
		table, err := params.Loader.LoadEqualization(state.Effective, state.Resolution)
		if err != nil {
			return nil, err
		}
		eq = equalization.New(table, start)
		logger.Debug("equalization table loaded",
			zap.String("generation", state.Effective.String()),
			zap.Float64("days", eq.Days()))
	}

	bands := src.Bands()
	p.schema = schema.Build(src.ProductType(), bands, stages.RadianceToReflectance)
	p.processor = NewProcessor(BuildLayout(bands, stages), cal, sc, eq, stages.RadianceToReflectance)

	p.copied = make([]int, len(p.schema.Bands))
	for i, t := range p.schema.Bands {
		p.copied[i] = -1
		if t.Copied {
			p.copied[i] = raster.BandIndex(src, t.SourceName)
			if p.copied[i] < 0 {
				return nil, errors.Errorf("copied band '%s' not found in source", t.SourceName)
			}
		}
	}

	logger.Info("correction initialized",
		zap.Bool("calibrate", stages.Calibrate),
		zap.Bool("smile", stages.SmileCorrect),
		zap.Bool("equalize", stages.Equalize),
		zap.Bool("reflectance", stages.RadianceToReflectance),
		zap.Int("targetBands", len(p.schema.Bands)))
	return p, nil
}

// State returns the detection outcome.
func (p *Pipeline) State() *detect.State { return p.state }

// Schema returns the target band layout.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Processor returns the per pixel routine.
func (p *Pipeline) Processor() *Processor { return p.processor }

// RunID identifies the pipeline in logs and reports.
func (p *Pipeline) RunID() string { return p.runID }

// NewTarget creates an empty in-memory product with the target schema. Run
// expects a writer whose bands are ordered like Schema().Bands.
func (p *Pipeline) NewTarget() *raster.Memory {
	t := raster.NewMemory(p.src.Name(), p.schema.ProductType, p.src.Width(), p.src.Height())
	t.SetDescription(p.schema.Description)
	t.SetAutoGrouping(p.schema.AutoGrouping)
	var start, end *time.Time
	if v, ok := p.src.StartTime(); ok {
		start = &v
	}
	if v, ok := p.src.EndTime(); ok {
		end = &v
	}
	t.SetTimes(start, end)
	if md := p.src.Metadata(); md != nil {
		t.SetMetadata(md.Clone())
	}
	for _, b := range p.schema.Bands {
		t.AddBand(b.Band())
	}
	return t
}
