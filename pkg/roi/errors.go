package roi

import "github.com/pkg/errors"

var (
	// ErrEmptyInput is returned when a boolean operation receives no regions.
	ErrEmptyInput = errors.New("roi: no regions supplied")

	// ErrDegenerateRegion is returned when an operation needs a region (or a
	// calibration) with non-zero extent and gets one without.
	ErrDegenerateRegion = errors.New("roi: degenerate region")

	// ErrUnsupportedConfiguration is returned for invalid sizes, overlaps,
	// growths or comparison windows.
	ErrUnsupportedConfiguration = errors.New("roi: unsupported configuration")
)
