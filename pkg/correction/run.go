package correction

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meriscorr/internal/models"
	"meriscorr/pkg/metrics"
	"meriscorr/pkg/raster"
)

// ErrCancelled is returned by Run when the context was cancelled before all
// tiles were written. It is a normal termination, not a processing failure.
var ErrCancelled = errors.New("correction cancelled")

// Run computes every target band for the whole product and writes the
// samples to dst, whose bands must be ordered like Schema().Bands. Row tiles
// are processed concurrently; each target sample is written by exactly one
// worker.
func (p *Pipeline) Run(ctx context.Context, dst raster.Writer) error {
	started := time.Now()
	height := p.src.Height()
	tile := p.params.TileHeight

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.NumWorkers)
	tiles, total := 0, (height+tile-1)/tile
	for y0 := 0; y0 < height; y0 += tile {
		if gctx.Err() != nil {
			break
		}
		y1 := y0 + tile
		if y1 > height {
			y1 = height
		}
		tiles++
		y0 := y0 // per-iteration copy (Go 1.22 loopvar semantics)
		g.Go(func() error {
			return p.processTile(gctx, dst, y0, y1)
		})
	}
	err := g.Wait()

	if errors.Is(err, ErrCancelled) || (err == nil && tiles < total) {
		if p.params.Metrics != nil {
			p.params.Metrics.Cancelled()
		}
		p.logger.Info("correction cancelled", zap.Duration("elapsed", time.Since(started)))
		return ErrCancelled
	}
	if err != nil {
		return err
	}
	p.logger.Info("correction finished",
		zap.Int("tiles", tiles),
		zap.Int("workers", p.params.NumWorkers),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (p *Pipeline) processTile(ctx context.Context, dst raster.Writer, y0, y1 int) error {
	proc := p.processor
	sample := models.NewPixelSample(len(proc.Layout.Spectral))
	bands := p.schema.Bands
	width := p.src.Width()

	var counts metrics.TileCounts
	defer func() {
		if p.params.Metrics != nil {
			p.params.Metrics.Add(counts)
		}
	}()

	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			if n%CancelCheckInterval == 0 && ctx.Err() != nil {
				return ErrCancelled
			}
			n++

			proc.ReadSample(p.src, x, y, sample, &counts)
			for i, t := range bands {
				if src := p.copied[i]; src >= 0 {
					dst.SetBandValue(i, x, y, p.src.BandValue(src, x, y))
					continue
				}
				dst.SetBandValue(i, x, y, proc.ComputeSample(sample, t))
			}
			counts.Pixels++
		}
	}
	p.logger.Debug("tile done", zap.Int("firstRow", y0), zap.Int("rows", y1-y0))
	return nil
}
