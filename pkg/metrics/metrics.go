// Package metrics counts how pixels were treated by the correction stages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so that several runs in one process do
// not collide.
type Recorder struct {
	registry *prometheus.Registry

	pixels          prometheus.Counter
	saturated       *prometheus.CounterVec
	invalidDetector prometheus.Counter
	invalidFlag     prometheus.Counter
	cancelled       prometheus.Counter
}

// NewRecorder creates and registers the counters.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pixels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meriscorr",
			Name:      "pixels_processed_total",
			Help:      "Pixels for which all target samples were computed.",
		}),
		saturated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meriscorr",
			Name:      "saturated_samples_total",
			Help:      "Radiance samples left uncalibrated because they reached the saturation threshold.",
		}, []string{"band"}),
		invalidDetector: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meriscorr",
			Name:      "invalid_detector_pixels_total",
			Help:      "Pixels without a valid detector index.",
		}),
		invalidFlag: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meriscorr",
			Name:      "invalid_flag_pixels_total",
			Help:      "Pixels skipped by smile correction because of the invalid flag.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meriscorr",
			Name:      "cancelled_runs_total",
			Help:      "Runs stopped by cancellation.",
		}),
	}
	r.registry.MustRegister(r.pixels, r.saturated, r.invalidDetector, r.invalidFlag, r.cancelled)
	return r
}

// TileCounts accumulates counts inside one worker; it is merged into the
// recorder once per tile.
type TileCounts struct {
	Pixels          int
	InvalidDetector int
	InvalidFlag     int
	Saturated       map[string]int
}

// AddSaturated counts one saturated sample of a band.
func (c *TileCounts) AddSaturated(band string) {
	if c.Saturated == nil {
		c.Saturated = map[string]int{}
	}
	c.Saturated[band]++
}

// Add merges tile counts. It is safe for concurrent use.
func (r *Recorder) Add(c TileCounts) {
	r.pixels.Add(float64(c.Pixels))
	r.invalidDetector.Add(float64(c.InvalidDetector))
	r.invalidFlag.Add(float64(c.InvalidFlag))
	for band, n := range c.Saturated {
		r.saturated.WithLabelValues(band).Add(float64(n))
	}
}

// Cancelled records a cancelled run.
func (r *Recorder) Cancelled() {
	r.cancelled.Inc()
}

// Registry exposes the registry, e.g. for an HTTP handler or a test gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile stores the current values in the node exporter textfile
// format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Totals are the counter values of a recorder summed over all labels.
type Totals struct {
	Pixels          int `yaml:"pixels"`
	Saturated       int `yaml:"saturatedSamples"`
	InvalidDetector int `yaml:"invalidDetectorPixels"`
	InvalidFlag     int `yaml:"invalidFlagPixels"`
	Cancelled       int `yaml:"cancelledRuns"`
}

// Totals gathers the current counter values.
func (r *Recorder) Totals() (Totals, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, mf := range families {
		sum := 0.0
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		switch mf.GetName() {
		case "meriscorr_pixels_processed_total":
			t.Pixels = int(sum)
		case "meriscorr_saturated_samples_total":
			t.Saturated = int(sum)
		case "meriscorr_invalid_detector_pixels_total":
			t.InvalidDetector = int(sum)
		case "meriscorr_invalid_flag_pixels_total":
			t.InvalidFlag = int(sum)
		case "meriscorr_cancelled_runs_total":
			t.Cancelled = int(sum)
		}
	}
	return t, nil
}
