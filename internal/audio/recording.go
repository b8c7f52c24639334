// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	recordingBitDepth = 16
	wavFormatPCM      = 1
)

// Recorder writes captured mono blocks to a 16-bit PCM WAV file. Write is
// called from the capture callback; Start and Stop from the control path.
type Recorder struct {
	sampleRate int

	recording atomic.Bool // Checked by Write without taking mu.

	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer // Reused for every block.
}

// NewRecorder returns a stopped recorder for blocks of up to chunkSize
// samples at sampleRate.
func NewRecorder(sampleRate float64, chunkSize int) *Recorder {
	return &Recorder{
		sampleRate: int(sampleRate),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, chunkSize),
			SourceBitDepth: recordingBitDepth,
		},
	}
}

// RecordingName returns the default file name for a recording started at t,
// recording-DD-MM-YYYY-HHMMSS.wav in dir.
func RecordingName(dir string, t time.Time) string {
	return filepath.Join(dir, "recording-"+t.UTC().Format("02-01-2006-150405")+".wav")
}

// Start creates path and begins accepting blocks.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}

	r.path = path
	r.file = file
	r.encoder = wav.NewEncoder(file, r.sampleRate, recordingBitDepth, 1, wavFormatPCM)
	r.recording.Store(true)
	return nil
}

// Write appends block to the recording. It is a no-op when not recording.
func (r *Recorder) Write(block []int16) error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return nil
	}

	n := min(len(block), cap(r.buf.Data))
	r.buf.Data = r.buf.Data[:n]
	for i := range n {
		r.buf.Data[i] = int(block[i])
	}
	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file. Stopping a recorder that
// is not recording is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Swap(false) {
		return nil
	}

	var encErr, fileErr error
	if err := r.encoder.Close(); err != nil {
		encErr = fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	if err := r.file.Close(); err != nil {
		fileErr = fmt.Errorf("failed to close recording file: %w", err)
	}
	r.encoder = nil
	r.file = nil
	return errors.Join(encErr, fileErr)
}

// Recording reports whether blocks are currently being written.
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Path returns the file of the current or most recent recording.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}
