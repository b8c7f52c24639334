// SPDX-License-Identifier: MIT
/*
Package audio captures mono 16-bit microphone blocks with PortAudio and hands
them to the analyzer.

Two modes are provided:
  - Capture (push): PortAudio calls back with every block; the callback copies
    it into a pre-allocated buffer, feeds the sink and the optional recorder.
  - BlockReader (pull): a blocking stream read one block at a time, used where
    the caller drives the pace.

Thread Safety:
  - The capture callback runs on a PortAudio thread and must not block; it
    only copies, ingests and (when recording) encodes.
  - Start, Stop and Close are control-path calls and are not safe to call
    concurrently with each other.
*/
package audio

import (
	"runtime"
	"time"

	"github.com/gordonklaus/portaudio"

	"audioreact/internal/analysis"
	"audioreact/internal/log"
)

var logger = log.New("audio")

// CaptureConfig selects the device and block geometry of a stream.
type CaptureConfig struct {
	DeviceID   int     // PortAudio device index, DefaultDeviceID for the default.
	SampleRate float64 // Hz.
	ChunkSize  int     // Frames per buffer.
	LowLatency bool    // Use the device's low input latency.
}

// streamParameters resolves the input device and builds mono input-only
// parameters for cfg.
func streamParameters(cfg CaptureConfig) (portaudio.StreamParameters, error) {
	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return portaudio.StreamParameters{}, &CaptureError{Op: "open", Err: err}
	}

	var latency time.Duration
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	} else {
		latency = device.DefaultHighInputLatency
	}

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   nil,
			Channels: 0,
		},
		FramesPerBuffer: cfg.ChunkSize,
		SampleRate:      cfg.SampleRate,
	}, nil
}

// Capture runs a callback-driven input stream feeding a BlockSink.
type Capture struct {
	cfg      CaptureConfig
	sink     analysis.BlockSink
	recorder *Recorder

	stream      *portaudio.Stream
	buffer      []int16 // Callback copy of the PortAudio buffer.
	writeFailed bool    // Recorder failure streak, for log rate limiting.
}

// NewCapture prepares a capture for cfg. recorder may be nil. No device is
// opened until Start.
func NewCapture(cfg CaptureConfig, sink analysis.BlockSink, recorder *Recorder) *Capture {
	return &Capture{
		cfg:      cfg,
		sink:     sink,
		recorder: recorder,
		buffer:   make([]int16, cfg.ChunkSize),
	}
}

// Start opens the input device and begins delivering blocks to the sink.
func (c *Capture) Start() error {
	params, err := streamParameters(c.cfg)
	if err != nil {
		return err
	}

	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return &CaptureError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return &CaptureError{Op: "start", Err: err}
	}
	c.stream = stream

	logger.Infof("Capturing from %q (%.0f Hz, %d frames, latency %s)",
		params.Input.Device.Name, c.cfg.SampleRate, c.cfg.ChunkSize, params.Input.Latency)
	return nil
}

// Stop halts and closes the stream. It is safe to call on a stopped capture.
func (c *Capture) Stop() error {
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return &CaptureError{Op: "stop", Err: err}
	}
	if err := stream.Close(); err != nil {
		return &CaptureError{Op: "close", Err: err}
	}
	return nil
}

// Close stops the stream and finalizes any recording in progress.
func (c *Capture) Close() error {
	if c.recorder != nil {
		if err := c.recorder.Stop(); err != nil {
			c.Stop()
			return err
		}
	}
	return c.Stop()
}

// process is the PortAudio callback. It uses pre-allocated buffers only.
// Ingest errors are logged by the analyzer and not acted on here.
func (c *Capture) process(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(c.buffer, in)
	block := c.buffer[:n]
	_ = c.sink.Ingest(block)

	if c.recorder == nil {
		return
	}
	if err := c.recorder.Write(block); err != nil {
		if !c.writeFailed {
			logger.Warnf("Error writing to WAV file: %v", err)
			c.writeFailed = true
		}
		return
	}
	c.writeFailed = false
}
