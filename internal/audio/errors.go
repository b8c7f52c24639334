// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrCapture matches every *CaptureError.
	ErrCapture = errors.New("audio: capture error")

	// ErrAlreadyRecording is returned by Recorder.Start while a recording is
	// in progress.
	ErrAlreadyRecording = errors.New("audio: already recording")

	// ErrNotStarted is returned by operations that need an open stream.
	ErrNotStarted = errors.New("audio: stream not started")
)

// CaptureError wraps a PortAudio failure with the stream operation that
// produced it.
type CaptureError struct {
	Op  string // "open", "start", "read", "stop" or "close".
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("audio: %s stream: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCapture.
func (e *CaptureError) Is(target error) bool {
	return target == ErrCapture
}
