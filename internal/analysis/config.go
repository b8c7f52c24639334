// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"time"
)

// Defaults for the analyzer. The loudness values are in raw signed 16-bit
// sample units.
const (
	DefaultSampleRate          = 44100
	DefaultChunkSize           = 1024
	DefaultNumBands            = 16
	DefaultVolumeHistoryDepth  = 10
	DefaultBandHistoryDepth    = 5
	DefaultMaxVolume           = 5000.0
	DefaultNoiseFloor          = 500.0
	DefaultCalibrationInterval = 100 * time.Millisecond
	DefaultCalibrationDuration = 3 * time.Second
)

// Config is fixed at construction; an Analyzer cannot be reconfigured.
type Config struct {
	SampleRate          float64       // Hz.
	ChunkSize           int           // Samples per block, also the FFT size.
	NumBands            int           // Number of logarithmic output bands.
	VolumeHistoryDepth  int           // Blocks averaged into the smoothed volume.
	BandHistoryDepth    int           // Frames averaged into each band.
	DefaultMaxVolume    float64       // Max volume used before/without calibration.
	DefaultNoiseFloor   float64       // Noise floor used before/without calibration.
	Window              WindowFunc    // Window applied before the transform.
	CalibrationInterval time.Duration // Pause between calibration samples.
}

// DefaultConfig returns a 44.1 kHz, 1024-sample, 16-band configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:          DefaultSampleRate,
		ChunkSize:           DefaultChunkSize,
		NumBands:            DefaultNumBands,
		VolumeHistoryDepth:  DefaultVolumeHistoryDepth,
		BandHistoryDepth:    DefaultBandHistoryDepth,
		DefaultMaxVolume:    DefaultMaxVolume,
		DefaultNoiseFloor:   DefaultNoiseFloor,
		Window:              Hann,
		CalibrationInterval: DefaultCalibrationInterval,
	}
}

// SpectrumLen returns the number of one-sided magnitude bins, ChunkSize/2 + 1.
func (c Config) SpectrumLen() int {
	return c.ChunkSize/2 + 1
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %f", c.SampleRate)
	case c.ChunkSize < 2:
		return fmt.Errorf("chunk size must be at least 2, got %d", c.ChunkSize)
	case c.NumBands < 1:
		return fmt.Errorf("band count must be positive, got %d", c.NumBands)
	case c.VolumeHistoryDepth < 1:
		return fmt.Errorf("volume history depth must be positive, got %d", c.VolumeHistoryDepth)
	case c.BandHistoryDepth < 1:
		return fmt.Errorf("band history depth must be positive, got %d", c.BandHistoryDepth)
	case c.DefaultNoiseFloor < 0 || c.DefaultMaxVolume <= c.DefaultNoiseFloor:
		return fmt.Errorf("default max volume %.2f must exceed default noise floor %.2f",
			c.DefaultMaxVolume, c.DefaultNoiseFloor)
	case c.CalibrationInterval <= 0:
		return fmt.Errorf("calibration interval must be positive, got %s", c.CalibrationInterval)
	}
	return nil
}
