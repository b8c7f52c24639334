// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessing matches every *ProcessingError.
	ErrProcessing = errors.New("analysis: processing error")

	// ErrCalibrationDegenerate is reported when calibration collected no
	// samples or produced max volume <= noise floor. It is never fatal; the
	// analyzer falls back to its default calibration.
	ErrCalibrationDegenerate = errors.New("analysis: degenerate calibration")

	errEmptyBlock    = errors.New("empty block")
	errOversizeBlock = errors.New("block exceeds chunk size")
	errOddByteCount  = errors.New("byte count is not a multiple of the sample width")
	errNonFinite     = errors.New("non-finite spectrum")
)

// ProcessingError describes a block that could not be analyzed. The analyzer
// keeps its last good derived state when one is returned.
type ProcessingError struct {
	Op  string // "loudness", "spectrum" or "decode".
	Len int    // Length of the offending input (samples, or bytes for decode).
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("analysis: %s: %v (len %d)", e.Op, e.Err, e.Len)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProcessing.
func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessing
}
