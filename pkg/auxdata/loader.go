// Package auxdata resolves and parses the auxiliary tables used by the
// correction stages: radiometric gains, smile coefficients and equalization
// coefficients. Tables are loaded once and are read-only afterwards.
package auxdata

import (
	"embed"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"meriscorr/internal/models"
)

// Names of the built-in calibration resources. The source table carries the
// gains of the 2nd reprocessing, the target table those of the 3rd.
const (
	DefaultSourceCalibration = "MER_RAC_AXVIEC20050708_135553_20021224_121445_20041213_220000"
	DefaultTargetCalibration = "MER_RAC_AXVACR20091016_154511_20021224_121445_20041213_220000"
)

//go:embed resources/*.yaml
var embedded embed.FS

// SmileResourceName is the built-in smile table of a resolution.
func SmileResourceName(res models.Resolution) string {
	return "smile_" + res.String()
}

// EqualizationResourceName is the built-in equalization table of a
// generation and resolution.
func EqualizationResourceName(gen models.Generation, res models.Resolution) string {
	return "equalization_" + gen.String() + "_" + res.String()
}

// Loader opens auxiliary resources either from user supplied paths or from
// the built-in defaults.
type Loader struct {
	defaults fs.FS
	logger   *zap.Logger
}

// NewLoader creates a loader backed by the built-in resources.
func NewLoader(logger *zap.Logger) *Loader {
	sub, err := fs.Sub(embedded, "resources")
	if err != nil {
		panic(err)
	}
	return NewLoaderFS(sub, logger)
}

// NewLoaderFS creates a loader whose defaults are read from fsys. Resource
// names are looked up as "<name>.yaml".
func NewLoaderFS(fsys fs.FS, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{defaults: fsys, logger: logger}
}

// Open returns a stream for path, or for the default resource when path is
// empty. The caller must close the stream.
func (l *Loader) Open(path, defaultName string) (io.ReadCloser, error) {
	if path == "" {
		f, err := l.defaults.Open(defaultName + ".yaml")
		if err != nil {
			return nil, &AuxiliaryDataError{Resource: defaultName, Internal: true, Err: err}
		}
		l.logger.Debug("opened built-in auxiliary data", zap.String("resource", defaultName))
		return f, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &AuxiliaryDataError{Resource: path, Err: errors.Wrap(err, "cannot open auxiliary file")}
	}
	l.logger.Debug("opened auxiliary file", zap.String("path", path))
	return f, nil
}

// LoadCalibration parses the source and target gain tables. Both streams are
// closed before returning, whatever the outcome.
func (l *Loader) LoadCalibration(sourcePath, targetPath string, res models.Resolution) (source, target *GainTable, err error) {
	srcStream, err := l.Open(sourcePath, DefaultSourceCalibration)
	if err != nil {
		return nil, nil, err
	}
	defer srcStream.Close()

	tgtStream, err := l.Open(targetPath, DefaultTargetCalibration)
	if err != nil {
		return nil, nil, err
	}
	defer tgtStream.Close()

	source, err = ParseGainTable(srcStream, res)
	if err != nil {
		return nil, nil, l.parseError(sourcePath, DefaultSourceCalibration, err)
	}
	target, err = ParseGainTable(tgtStream, res)
	if err != nil {
		return nil, nil, l.parseError(targetPath, DefaultTargetCalibration, err)
	}
	return source, target, nil
}

// LoadSmile parses the built-in smile table of a resolution.
func (l *Loader) LoadSmile(res models.Resolution) (*SmileTable, error) {
	name := SmileResourceName(res)
	r, err := l.Open("", name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t, err := ParseSmileTable(r)
	if err != nil {
		return nil, l.parseError("", name, err)
	}
	if t.Resolution != res {
		return nil, l.parseError("", name, errors.Errorf("table is for %s, want %s", t.Resolution, res))
	}
	return t, nil
}

// LoadEqualization parses the built-in equalization table of a generation
// and resolution.
func (l *Loader) LoadEqualization(gen models.Generation, res models.Resolution) (*EqualizationTable, error) {
	name := EqualizationResourceName(gen, res)
	r, err := l.Open("", name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t, err := ParseEqualizationTable(r)
	if err != nil {
		return nil, l.parseError("", name, err)
	}
	if t.Resolution != res || t.Generation != gen {
		return nil, l.parseError("", name, errors.Errorf("table is for %s/%s, want %s/%s", t.Generation, t.Resolution, gen, res))
	}
	return t, nil
}

func (l *Loader) parseError(path, defaultName string, err error) error {
	if path == "" {
		return &AuxiliaryDataError{Resource: defaultName, Internal: true, Err: err}
	}
	return &AuxiliaryDataError{Resource: path, Err: err}
}
