// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"audioreact/internal/analysis"
	"audioreact/internal/log"
	"audioreact/pkg/bitint"
)

var logger = log.New("config")

// candidates are searched in order when LoadConfig is given no path.
var candidates = []string{
	"config.yaml",
}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// the candidate locations are searched and, when none exists, the built-in
// defaults are used. Environment overrides are applied after the file and the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("Loaded configuration from %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every range the pipeline depends on. Errors wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.ChunkSize < MinChunkSize || c.Audio.ChunkSize > MaxChunkSize {
		return invalid("audio.chunk_size %d outside [%d, %d]", c.Audio.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if !bitint.IsPowerOfTwo(c.Audio.ChunkSize) {
		return invalid("audio.chunk_size %d is not a power of two (try %d)",
			c.Audio.ChunkSize, bitint.NextPowerOfTwo(c.Audio.ChunkSize))
	}
	if _, err := analysis.ParseWindowFunc(c.Audio.FFTWindow); err != nil {
		return invalid("audio.fft_window: %v", err)
	}

	a := c.Analysis
	if spectrumLen := c.Audio.ChunkSize/2 + 1; a.NumBands < 1 || a.NumBands > spectrumLen {
		return invalid("analysis.num_bands %d outside [1, %d]", a.NumBands, spectrumLen)
	}
	if a.VolumeHistoryDepth < 1 || a.BandHistoryDepth < 1 {
		return invalid("analysis history depths must be at least 1 (volume %d, bands %d)",
			a.VolumeHistoryDepth, a.BandHistoryDepth)
	}
	if a.DefaultNoiseFloor < 0 || a.DefaultMaxVolume <= a.DefaultNoiseFloor {
		return invalid("analysis.default_max_volume %.2f must exceed default_noise_floor %.2f >= 0",
			a.DefaultMaxVolume, a.DefaultNoiseFloor)
	}
	if a.CalibrationSeconds < 0 {
		return invalid("analysis.calibration_seconds must not be negative")
	}
	if a.CalibrationInterval <= 0 {
		return invalid("analysis.calibration_interval must be positive")
	}

	if c.Recording.BitDepth != DefaultBitDepth {
		return invalid("recording.bit_depth %d unsupported, only 16", c.Recording.BitDepth)
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WSEnabled {
		if !strings.Contains(t.WSAddress, ":") {
			return invalid("transport.ws_address %q appears invalid (missing port?)", t.WSAddress)
		}
		if t.WSSendInterval <= 0 {
			return invalid("transport.ws_send_interval must be positive when WebSocket is enabled")
		}
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q unknown", c.LogLevel)
	}
	return nil
}

// AnalysisConfig derives the fixed analyzer configuration. It assumes c has
// been validated.
func (c *Config) AnalysisConfig() analysis.Config {
	window, _ := analysis.ParseWindowFunc(c.Audio.FFTWindow)
	return analysis.Config{
		SampleRate:          c.Audio.SampleRate,
		ChunkSize:           c.Audio.ChunkSize,
		NumBands:            c.Analysis.NumBands,
		VolumeHistoryDepth:  c.Analysis.VolumeHistoryDepth,
		BandHistoryDepth:    c.Analysis.BandHistoryDepth,
		DefaultMaxVolume:    c.Analysis.DefaultMaxVolume,
		DefaultNoiseFloor:   c.Analysis.DefaultNoiseFloor,
		Window:              window,
		CalibrationInterval: c.Analysis.CalibrationInterval,
	}
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	// ENV_AUDIO_{...}
	envInt("ENV_AUDIO_INPUT_DEVICE", &c.Audio.InputDevice)
	envInt("ENV_AUDIO_CHUNK_SIZE", &c.Audio.ChunkSize)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", &c.Transport.WSEnabled)
	envString("ENV_WS_ADDRESS", &c.Transport.WSAddress)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		logger.Infof("Overriding %s from env: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		logger.Warnf("Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = b
	logger.Infof("Overriding %s from env: %v", key, b)
}

func envInt(key string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logger.Warnf("Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	logger.Infof("Overriding %s from env: %d", key, n)
}

func envDuration(key string, dst *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		logger.Warnf("Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = d
	logger.Infof("Overriding %s from env: %s", key, d)
}
