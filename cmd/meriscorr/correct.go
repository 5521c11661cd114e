package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meriscorr/pkg/auxdata"
	"meriscorr/pkg/correction"
	"meriscorr/pkg/detect"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
	"meriscorr/pkg/report"
	"meriscorr/pkg/visualization"
)

type correctOptions struct {
	input        string
	output       string
	quicklookDir string

	calibrate, smile, equalize, reflectance bool
	generation                              string
	sourceCalibration, targetCalibration    string
	workers, tileHeight                     int
	metricsFile, reportFile                 string
}

func newCorrectCmd(c *cli) *cobra.Command {
	o := &correctOptions{}
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Correct a product and write the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			o.apply(cmd, c)
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCorrect(ctx, c, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.input, "input", "i", "", "Source product directory")
	f.StringVarP(&o.output, "output", "o", "", "Target product directory")
	f.StringVar(&o.quicklookDir, "quicklook", "", "Write JPEG quicklooks of the spectral bands to this directory")
	f.BoolVar(&o.calibrate, "calibrate", true, "Re-calibrate to the 3rd reprocessing")
	f.BoolVar(&o.smile, "smile", true, "Apply the smile correction")
	f.BoolVar(&o.equalize, "equalize", true, "Equalize detectors")
	f.BoolVar(&o.reflectance, "reflectance", false, "Convert radiance to reflectance")
	f.StringVar(&o.generation, "generation", "auto", "Processing generation of the source (auto, generation-2, generation-3)")
	f.StringVar(&o.sourceCalibration, "source-calibration", "", "Source gain table (default: built-in)")
	f.StringVar(&o.targetCalibration, "target-calibration", "", "Target gain table (default: built-in)")
	f.IntVar(&o.workers, "workers", 0, "Number of concurrent tiles (default: number of CPUs)")
	f.IntVar(&o.tileHeight, "tile-height", 0, "Rows per tile")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write pixel counters in prometheus textfile format")
	f.StringVar(&o.reportFile, "report", "", "Write a YAML run report")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

// apply copies explicitly set flags over the configuration file values
func (o *correctOptions) apply(cmd *cobra.Command, c *cli) {
	f := cmd.Flags()
	cc := &c.cfg.Correction
	if f.Changed("calibrate") {
		cc.Calibrate = o.calibrate
	}
	if f.Changed("smile") {
		cc.SmileCorrect = o.smile
	}
	if f.Changed("equalize") {
		cc.Equalize = o.equalize
	}
	if f.Changed("reflectance") {
		cc.RadianceToReflectance = o.reflectance
	}
	if f.Changed("generation") {
		cc.Generation = o.generation
	}
	if f.Changed("source-calibration") {
		cc.SourceCalibrationFile = o.sourceCalibration
	}
	if f.Changed("target-calibration") {
		cc.TargetCalibrationFile = o.targetCalibration
	}
	if f.Changed("workers") {
		c.cfg.Processing.NumWorkers = o.workers
	}
	if f.Changed("tile-height") {
		c.cfg.Processing.TileHeight = o.tileHeight
	}
	if f.Changed("metrics-file") {
		c.cfg.Output.MetricsFile = o.metricsFile
	}
	if f.Changed("report") {
		c.cfg.Output.ReportFile = o.reportFile
	}
}

func pipelineParams(c *cli, rec *metrics.Recorder) correction.Params {
	cc := c.cfg.Correction
	return correction.Params{
		Stages: detect.Stages{
			Calibrate:             cc.Calibrate,
			SmileCorrect:          cc.SmileCorrect,
			Equalize:              cc.Equalize,
			RadianceToReflectance: cc.RadianceToReflectance,
		},
		Generation:            c.cfg.GenerationHint(),
		SourceCalibrationFile: cc.SourceCalibrationFile,
		TargetCalibrationFile: cc.TargetCalibrationFile,
		NumWorkers:            c.cfg.Processing.NumWorkers,
		TileHeight:            c.cfg.Processing.TileHeight,
		Loader:                auxdata.NewLoader(c.logger),
		Metrics:               rec,
		Logger:                c.logger,
	}
}

func runCorrect(ctx context.Context, c *cli, o *correctOptions) error {
	logger := c.logger
	src, err := raster.ReadProduct(o.input)
	if err != nil {
		return err
	}
	logger.Info("source product loaded",
		zap.String("path", o.input),
		zap.String("productType", src.ProductType()),
		zap.Int("width", src.Width()),
		zap.Int("height", src.Height()))

	rec := metrics.NewRecorder()
	p, err := correction.NewPipeline(src, pipelineParams(c, rec))
	if err != nil {
		return err
	}

	started := time.Now()
	target := p.NewTarget()
	err = p.Run(ctx, target)
	if errors.Is(err, correction.ErrCancelled) {
		logger.Info("cancelled, no output written")
		return writeMetrics(c, rec)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	if err := raster.WriteProduct(o.output, target); err != nil {
		return err
	}
	logger.Info("target product written", zap.String("path", o.output), zap.Duration("elapsed", elapsed))

	if err := writeMetrics(c, rec); err != nil {
		return err
	}
	if path := c.cfg.Output.ReportFile; path != "" {
		r, err := report.New(p.RunID(), p.State(), target, rec, elapsed)
		if err != nil {
			return err
		}
		if err := r.Write(path); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", path))
	}
	if o.quicklookDir != "" {
		files, err := visualization.NewViewer(target).SaveSpectralBands(o.quicklookDir)
		if err != nil {
			return err
		}
		logger.Info("quicklooks written", zap.String("dir", filepath.Clean(o.quicklookDir)), zap.Int("count", len(files)))
	}
	return nil
}

func writeMetrics(c *cli, rec *metrics.Recorder) error {
	path := c.cfg.Output.MetricsFile
	if path == "" {
		return nil
	}
	if err := rec.WriteTextfile(path); err != nil {
		return err
	}
	c.logger.Debug("metrics written", zap.String("path", path))
	return nil
}
