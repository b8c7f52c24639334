// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"audioreact/internal/analysis"
	"audioreact/internal/audio"
	"audioreact/internal/config"
	"audioreact/internal/log"
	"audioreact/internal/transport"
	"audioreact/internal/transport/udp"
)

var logger = log.New("app")

// Pipeline wires push-mode capture into the analyzer and fans snapshots out
// to the configured consumers.
type Pipeline struct {
	cfg      *config.Config
	analyzer *analysis.Analyzer
	capture  *audio.Capture
	recorder *audio.Recorder

	broadcaster *transport.Broadcaster
	ws          *transport.WebSocketTransport
	publisher   *udp.Publisher
	sender      *udp.Sender
	closers     []io.Closer
}

// NewPipeline builds the analyzer and the consumers described by cfg. Nothing
// is started.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	analyzer, err := analysis.New(cfg.AnalysisConfig())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, analyzer: analyzer}
	if cfg.Recording.Enabled {
		p.recorder = audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.ChunkSize)
	}
	p.capture = audio.NewCapture(captureConfig(cfg), analyzer, p.recorder)

	var transports []transport.Transport
	if cfg.Debug {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if cfg.Transport.WSEnabled {
		p.ws = transport.NewWebSocketTransport(cfg.Transport.WSAddress, cfg.Transport.WSSendInterval)
		transports = append(transports, p.ws)
	}
	if len(transports) > 0 {
		p.broadcaster = transport.NewBroadcaster(analyzer, cfg.Transport.WSSendInterval, transports...)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, analyzer, cfg.Analysis.NumBands)
		if err != nil {
			sender.Close()
			return nil, err
		}
		p.sender, p.publisher = sender, publisher
	}
	return p, nil
}

func captureConfig(cfg *config.Config) audio.CaptureConfig {
	return audio.CaptureConfig{
		DeviceID:   cfg.Audio.InputDevice,
		SampleRate: cfg.Audio.SampleRate,
		ChunkSize:  cfg.Audio.ChunkSize,
		LowLatency: cfg.Audio.LowLatency,
	}
}

// Analyzer returns the analyzer consumers read from.
func (p *Pipeline) Analyzer() *analysis.Analyzer {
	return p.analyzer
}

// Start begins capture and recording, runs the startup calibration against
// the push-fed volume, then starts the consumers. An empty recordPath records
// to a timestamped file in the configured output directory.
func (p *Pipeline) Start(ctx context.Context, recordPath string) error {
	if err := p.capture.Start(); err != nil {
		return err
	}
	p.closers = append(p.closers, p.capture)

	if p.recorder != nil {
		if err := p.recorder.Start(p.recordingPath(recordPath)); err != nil {
			return err
		}
	}

	if d := p.cfg.CalibrationDuration(); d > 0 {
		res, err := p.analyzer.Calibrate(ctx, d, nil)
		if err != nil {
			return err
		}
		logCalibration(res)
	}

	if p.ws != nil {
		if err := p.ws.Start(); err != nil {
			return err
		}
	}
	if p.broadcaster != nil {
		p.broadcaster.Start()
		p.closers = append(p.closers, p.broadcaster)
	}
	if p.publisher != nil {
		p.publisher.Start()
		p.closers = append(p.closers, p.publisher)
	}
	return nil
}

func (p *Pipeline) recordingPath(path string) string {
	if path != "" {
		return path
	}
	return audio.RecordingName(p.cfg.Recording.OutputDir, time.Now())
}

// RecordingPath returns the WAV path being written, if any.
func (p *Pipeline) RecordingPath() string {
	if p.recorder == nil {
		return ""
	}
	return p.recorder.Path()
}

// Close shuts everything down in reverse start order.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	if p.sender != nil {
		if err := p.sender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func logCalibration(res analysis.CalibrationResult) {
	if res.FellBack {
		logger.Warnf("Calibration fell back to defaults: %v", res.Reason)
		return
	}
	logger.Infof("Calibrated from %d samples: max volume %.1f, noise floor %.1f",
		res.Samples, res.MaxVolume, res.NoiseFloor)
}

// RunCalibration calibrates in pull mode from a blocking reader and writes
// the result to w.
func RunCalibration(ctx context.Context, cfg *config.Config, w io.Writer) error {
	analyzer, err := analysis.New(cfg.AnalysisConfig())
	if err != nil {
		return err
	}
	reader, err := audio.OpenBlockReader(captureConfig(cfg))
	if err != nil {
		return err
	}
	defer reader.Close()

	d := cfg.CalibrationDuration()
	if d <= 0 {
		d = analysis.DefaultCalibrationDuration
	}
	res, err := analyzer.Calibrate(ctx, d, reader)
	if err != nil {
		return err
	}
	return writeCalibration(w, res, reader.Overflows())
}

func writeCalibration(w io.Writer, res analysis.CalibrationResult, overflows int) error {
	status := "measured"
	if res.FellBack {
		status = fmt.Sprintf("defaults (%v)", res.Reason)
	}
	_, err := fmt.Fprintf(w,
		"Calibration: %s\n  Max volume:  %.1f\n  Noise floor: %.1f\n  Samples:     %d in %s\n  Overflows:   %d\n",
		status, res.MaxVolume, res.NoiseFloor, res.Samples, res.Elapsed.Round(time.Millisecond), overflows)
	return err
}
