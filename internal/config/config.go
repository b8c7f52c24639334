// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"time"
)

// Boundaries and defaults for the capture and analysis pipeline.
const (
	DefaultDeviceID    = -1 // System default input device.
	DefaultSampleRate  = 44100
	DefaultChunkSize   = 1024
	DefaultFFTWindow   = "Hann"
	DefaultNumBands    = 16
	DefaultLogLevel    = "info"
	DefaultOutputDir   = "./recordings"
	DefaultBitDepth    = 16
	DefaultUDPTarget   = "127.0.0.1:9090"
	DefaultUDPInterval = 33 * time.Millisecond // ~30 Hz.
	DefaultWSAddress   = "127.0.0.1:8080"
	DefaultWSInterval  = 16 * time.Millisecond // ~60 Hz.

	MinSampleRate = 8000
	MaxSampleRate = 192000
	MinChunkSize  = 64
	MaxChunkSize  = 8192
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration, loaded from YAML and then
// overridden by ENV_* variables and command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enables the debug line in the monitor and debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice int     `yaml:"input_device"` // PortAudio device index, -1 for the default.
	SampleRate  float64 `yaml:"sample_rate"`  // Hz.
	ChunkSize   int     `yaml:"chunk_size"`   // Samples per block and FFT size.
	LowLatency  bool    `yaml:"low_latency"`  // Request the device's low input latency.
	FFTWindow   string  `yaml:"fft_window"`   // Hann, Hamming, Blackman, BlackmanNuttall, Nuttall or Rectangular.
}

// AnalysisConfig holds the loudness and band model settings.
type AnalysisConfig struct {
	NumBands            int           `yaml:"num_bands"`
	VolumeHistoryDepth  int           `yaml:"volume_history_depth"`
	BandHistoryDepth    int           `yaml:"band_history_depth"`
	DefaultMaxVolume    float64       `yaml:"default_max_volume"`
	DefaultNoiseFloor   float64       `yaml:"default_noise_floor"`
	CalibrationSeconds  float64       `yaml:"calibration_seconds"` // 0 disables startup calibration.
	CalibrationInterval time.Duration `yaml:"calibration_interval"`
}

// RecordingConfig holds WAV recording settings.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // Only 16 is supported.
}

// TransportConfig holds the consumer transports.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddress        string        `yaml:"ws_address"`
	WSSendInterval   time.Duration `yaml:"ws_send_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice: DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			ChunkSize:   DefaultChunkSize,
			FFTWindow:   DefaultFFTWindow,
		},
		Analysis: AnalysisConfig{
			NumBands:            DefaultNumBands,
			VolumeHistoryDepth:  10,
			BandHistoryDepth:    5,
			DefaultMaxVolume:    5000,
			DefaultNoiseFloor:   500,
			CalibrationSeconds:  3,
			CalibrationInterval: 100 * time.Millisecond,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
			WSAddress:        DefaultWSAddress,
			WSSendInterval:   DefaultWSInterval,
		},
	}
}

// CalibrationDuration returns the startup calibration length.
func (c *Config) CalibrationDuration() time.Duration {
	return time.Duration(c.Analysis.CalibrationSeconds * float64(time.Second))
}
