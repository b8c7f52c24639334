// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"

	"github.com/gordonklaus/portaudio"

	"audioreact/internal/analysis"
)

var _ analysis.BlockSource = (*BlockReader)(nil)

// BlockReader is a blocking input stream read one block at a time.
type BlockReader struct {
	stream    *portaudio.Stream
	buffer    []int16
	overflows int
}

// OpenBlockReader opens and starts a blocking stream for cfg.
func OpenBlockReader(cfg CaptureConfig) (*BlockReader, error) {
	params, err := streamParameters(cfg)
	if err != nil {
		return nil, err
	}

	r := &BlockReader{buffer: make([]int16, cfg.ChunkSize)}
	stream, err := portaudio.OpenStream(params, r.buffer)
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, &CaptureError{Op: "start", Err: err}
	}
	r.stream = stream
	return r, nil
}

// ReadBlock reads one block into dst. Input overflow drops samples on the
// device side but is not an error; the block read is still returned. ctx is
// checked before the read since PortAudio reads cannot be interrupted.
func (r *BlockReader) ReadBlock(ctx context.Context, dst []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.stream == nil {
		return 0, ErrNotStarted
	}

	if err := r.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return 0, &CaptureError{Op: "read", Err: err}
		}
		if r.overflows == 0 {
			logger.Debugf("Input overflowed, continuing")
		}
		r.overflows++
	}
	return copy(dst, r.buffer), nil
}

// Overflows returns how many reads reported input overflow.
func (r *BlockReader) Overflows() int {
	return r.overflows
}

// Close stops and closes the stream.
func (r *BlockReader) Close() error {
	if r.stream == nil {
		return nil
	}
	stream := r.stream
	r.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return &CaptureError{Op: "stop", Err: err}
	}
	if err := stream.Close(); err != nil {
		return &CaptureError{Op: "close", Err: err}
	}
	return nil
}
