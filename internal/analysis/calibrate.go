// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// Calibration percentiles and headroom factors.
const (
	maxVolumePercentile  = 0.9
	maxVolumeHeadroom    = 1.5
	noiseFloorPercentile = 0.2
	noiseFloorHeadroom   = 1.3
)

// Calibration is the loudness model used to normalize volume. MaxVolume and
// NoiseFloor are in raw sample units; DynamicRange is in [0.5, 2.0].
type Calibration struct {
	MaxVolume    float64 `json:"max_volume"`
	NoiseFloor   float64 `json:"noise_floor"`
	DynamicRange float64 `json:"dynamic_range"`
}

// CalibrationResult reports what a calibration run measured and applied.
type CalibrationResult struct {
	MaxVolume  float64
	NoiseFloor float64
	Samples    int           // Volume samples collected.
	Elapsed    time.Duration // Wall time spent sampling.
	FellBack   bool          // Defaults were applied instead of measurements.
	Reason     error         // Wraps ErrCalibrationDegenerate when FellBack.
}

// calibrationFromVolumes derives max volume and noise floor from a set of
// observed smoothed volumes. volumes is sorted in place.
func calibrationFromVolumes(volumes []float64) (maxVolume, noiseFloor float64, err error) {
	if len(volumes) == 0 {
		return 0, 0, fmt.Errorf("%w: no samples collected", ErrCalibrationDegenerate)
	}
	sort.Float64s(volumes)
	maxVolume = percentile(volumes, maxVolumePercentile) * maxVolumeHeadroom
	noiseFloor = percentile(volumes, noiseFloorPercentile) * noiseFloorHeadroom
	if maxVolume <= noiseFloor {
		return maxVolume, noiseFloor, fmt.Errorf("%w: max volume %.2f <= noise floor %.2f",
			ErrCalibrationDegenerate, maxVolume, noiseFloor)
	}
	return maxVolume, noiseFloor, nil
}

// percentile returns sorted[floor(len*p)], clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// clock abstracts time for the calibration loop.
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calibrate samples the smoothed volume every calibration interval until
// duration has elapsed, then overwrites the calibration model with
// max = p90 * 1.5 and floor = p20 * 1.3 of the samples.
//
// When src is non-nil one block is pulled from it and ingested before each
// sample (pull mode). With a nil src the volume is whatever push-mode capture
// has fed in meanwhile. A run that yields no samples, or a degenerate model,
// resets the defaults and reports it through the result; it is not an error.
// Only cancellation of ctx returns an error, and then the model is unchanged.
func (a *Analyzer) Calibrate(ctx context.Context, duration time.Duration, src BlockSource) (CalibrationResult, error) {
	a.logger.Infof("Calibrating for %s...", duration)

	interval := a.cfg.CalibrationInterval
	start := a.clock.Now()

	readCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	expected := 1
	if duration > 0 {
		expected += int(duration / interval)
	}
	volumes := make([]float64, 0, expected)
	block := make([]int16, a.cfg.ChunkSize)
	sourceFailed := false

	for a.clock.Now().Sub(start) < duration {
		if src != nil {
			n, err := src.ReadBlock(readCtx, block)
			switch {
			case errors.Is(err, io.EOF):
				a.logger.Infof("Calibration source exhausted after %d samples", len(volumes))
				src = nil
			case err != nil:
				if !sourceFailed {
					a.logger.Warnf("Calibration source read failed: %v", err)
					sourceFailed = true
				}
			default:
				sourceFailed = false
				_ = a.Ingest(block[:n])
			}
		}

		volumes = append(volumes, a.Level())

		if err := a.clock.Sleep(ctx, interval); err != nil {
			a.logger.Warnf("Calibration cancelled after %d samples: %v", len(volumes), err)
			return CalibrationResult{}, err
		}
	}

	result := CalibrationResult{
		Samples: len(volumes),
		Elapsed: a.clock.Now().Sub(start),
	}

	maxVolume, noiseFloor, err := calibrationFromVolumes(volumes)
	if err != nil {
		maxVolume, noiseFloor = a.cfg.DefaultMaxVolume, a.cfg.DefaultNoiseFloor
		result.FellBack = true
		result.Reason = err
		a.logger.Warnf("Calibration failed, using default values (%v)", err)
	} else {
		a.logger.Infof("Calibration complete: max_volume=%.2f, noise_floor=%.2f (%d samples)",
			maxVolume, noiseFloor, len(volumes))
	}

	result.MaxVolume = maxVolume
	result.NoiseFloor = noiseFloor
	a.setCalibration(maxVolume, noiseFloor)
	return result, nil
}
