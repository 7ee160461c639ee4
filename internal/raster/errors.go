package raster

import "errors"

// error taxonomy of the aggregator (check with errors.Is)
var (
	// ErrConfiguration: dataset directory missing or empty, invalid settings (fatal).
	ErrConfiguration = errors.New("configuration error")
	// ErrInconsistentRaster: tiles of one dataset disagree on resolution, CRS or band layout (fatal).
	ErrInconsistentRaster = errors.New("inconsistent raster")
	// ErrNoCoverage: no usable data for a station in any dataset (per station).
	ErrNoCoverage = errors.New("no coverage")
	// ErrOutOfBounds: SVF neighborhood exceeds the elevation raster extent (per station).
	ErrOutOfBounds = errors.New("out of bounds")
)

/*
IsFatal reports whether err invalidates the whole run.
Configuration and data integrity problems abort immediately, per-station problems do not.
*/
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInconsistentRaster)
}
