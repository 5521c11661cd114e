package auxdata

import "fmt"

// AuxiliaryDataError reports a calibration, smile or equalization resource
// that could not be opened or parsed. Internal is set when a built-in
// resource is at fault rather than a user supplied file.
type AuxiliaryDataError struct {
	Resource string
	Internal bool
	Err      error
}

func (e *AuxiliaryDataError) Error() string {
	if e.Internal {
		return fmt.Sprintf("built-in auxiliary data %q: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("auxiliary data %q: %v", e.Resource, e.Err)
}

func (e *AuxiliaryDataError) Unwrap() error {
	return e.Err
}
