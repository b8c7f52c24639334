// SPDX-License-Identifier: MIT
package analysis

import "math"

// Dynamic range bounds. The range only follows the volume while the volume is
// above the noise floor; quiet passages keep the last value, so sensitivity
// lags behind a drop in level.
const (
	minDynamicRange = 0.5
	maxDynamicRange = 2.0
)

// LoudnessEstimator turns blocks into a smoothed RMS level and drives the
// adaptive dynamic range of the calibration model it was given.
type LoudnessEstimator struct {
	history *volumeHistory
	volume  float64
	cal     *Calibration
}

// NewLoudnessEstimator returns an estimator averaging the last depth blocks.
// cal is owned by the caller and updated in place.
func NewLoudnessEstimator(depth int, cal *Calibration) *LoudnessEstimator {
	return &LoudnessEstimator{
		history: newVolumeHistory(depth),
		cal:     cal,
	}
}

// Ingest folds the RMS of block into the history. Empty blocks are rejected
// and leave the smoothed volume untouched.
func (l *LoudnessEstimator) Ingest(block []int16) error {
	if len(block) == 0 {
		return &ProcessingError{Op: "loudness", Len: 0, Err: errEmptyBlock}
	}

	l.volume = l.history.push(RMS(block))

	if l.volume > l.cal.NoiseFloor {
		l.cal.DynamicRange = clamp(l.volume/l.cal.MaxVolume, minDynamicRange, maxDynamicRange)
	}
	return nil
}

// Volume returns the mean RMS over the history, in raw sample units.
func (l *LoudnessEstimator) Volume() float64 {
	return l.volume
}

// RMS returns the root mean square of block in raw sample units. The sum of
// squares is accumulated as an integer: 1024 full-scale samples need 41 bits.
func RMS(block []int16) float64 {
	if len(block) == 0 {
		return 0
	}
	var sumSquares int64
	for _, s := range block {
		v := int64(s)
		sumSquares += v * v
	}
	return math.Sqrt(float64(sumSquares) / float64(len(block)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
