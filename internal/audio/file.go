// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"audioreact/internal/analysis"
)

var _ analysis.BlockSource = (*FileSource)(nil)

var (
	// ErrUnsupportedFormat is returned by OpenFile for unknown extensions.
	ErrUnsupportedFormat = errors.New("audio: unsupported file format")
	// ErrNotWavFile is returned for .wav files without a valid RIFF header.
	ErrNotWavFile = errors.New("audio: not a WAV file")
	// ErrNotAiffFile is returned for .aif/.aiff files without a valid FORM header.
	ErrNotAiffFile = errors.New("audio: not an AIFF file")
)

// frameReader fills dst with mono frames and returns how many it wrote.
// It returns io.EOF only when no frames were read.
type frameReader interface {
	readFrames(dst []int16) (int, error)
}

// FileSource decodes a WAV, AIFF, MP3 or Ogg Vorbis file into mono 16-bit blocks
// for pull-mode analysis.
type FileSource struct {
	file       *os.File
	frames     frameReader
	sampleRate int
	channels   int
	format     string
	eof        bool
}

// OpenFile opens path and picks a decoder from its extension.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	s := &FileSource{file: f, format: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))}
	switch s.format {
	case "wav":
		err = s.openWAV()
	case "aif", "aiff":
		err = s.openAIFF()
	case "mp3":
		err = s.openMP3()
	case "ogg", "oga":
		err = s.openVorbis()
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	logger.Infof("Opened %s (%s, %d Hz, %d channels)", filepath.Base(path), s.format, s.sampleRate, s.channels)
	return s, nil
}

func (s *FileSource) openWAV() error {
	dec := wav.NewDecoder(s.file)
	if !dec.IsValidFile() {
		return ErrNotWavFile
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 {
		return fmt.Errorf("audio: unsupported WAV bit depth %d", dec.BitDepth)
	}
	s.sampleRate, s.channels = int(dec.SampleRate), int(dec.NumChans)
	s.frames = newPCMFrames(dec, s.channels, s.sampleRate, int(dec.BitDepth), true)
	return nil
}

func (s *FileSource) openAIFF() error {
	dec := aiff.NewDecoder(s.file)
	if !dec.IsValidFile() {
		return ErrNotAiffFile
	}
	dec.ReadInfo()
	if dec.BitDepth == 0 || dec.BitDepth > 32 || dec.NumChans == 0 {
		return fmt.Errorf("audio: unsupported AIFF layout (%d bit, %d channels)", dec.BitDepth, dec.NumChans)
	}
	s.sampleRate, s.channels = dec.SampleRate, int(dec.NumChans)
	// AIFF stores 8-bit samples signed.
	s.frames = newPCMFrames(dec, s.channels, s.sampleRate, int(dec.BitDepth), false)
	return nil
}

func (s *FileSource) openMP3() error {
	dec, err := gomp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to decode MP3 stream: %w", err)
	}
	// go-mp3 always produces 16-bit little-endian stereo.
	s.sampleRate, s.channels = dec.SampleRate(), 2
	s.frames = &mp3Frames{dec: dec}
	return nil
}

func (s *FileSource) openVorbis() error {
	dec, err := oggvorbis.NewReader(s.file)
	if err != nil {
		return fmt.Errorf("failed to decode Ogg Vorbis stream: %w", err)
	}
	s.sampleRate, s.channels = dec.SampleRate(), dec.Channels()
	s.frames = &vorbisFrames{dec: dec, channels: s.channels}
	return nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *FileSource) SampleRate() int { return s.sampleRate }

// Channels returns the file's channel count before the mono mix.
func (s *FileSource) Channels() int { return s.channels }

// Format returns the lower-case extension the decoder was chosen by.
func (s *FileSource) Format() string { return s.format }

// ReadBlock fills dst with mono samples. Only the final block of a file may
// be short; after it ReadBlock returns io.EOF.
func (s *FileSource) ReadBlock(ctx context.Context, dst []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.eof {
		return 0, io.EOF
	}

	total := 0
	for total < len(dst) {
		n, err := s.frames.readFrames(dst[total:])
		total += n
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to decode %s: %w", s.format, err)
		}
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}

// pcmDecoder is the part of the go-audio WAV and AIFF decoders pcmFrames uses.
type pcmDecoder interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type pcmFrames struct {
	dec       pcmDecoder
	channels  int
	bitDepth  int
	unsigned8 bool
	buf       *goaudio.IntBuffer
}

func newPCMFrames(dec pcmDecoder, channels, sampleRate, bitDepth int, unsigned8 bool) *pcmFrames {
	return &pcmFrames{
		dec:       dec,
		channels:  channels,
		bitDepth:  bitDepth,
		unsigned8: unsigned8 && bitDepth == 8,
		buf:       &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}},
	}
}

func (w *pcmFrames) readFrames(dst []int16) (int, error) {
	need := len(dst) * w.channels
	if cap(w.buf.Data) < need {
		w.buf.Data = make([]int, need)
	}
	w.buf.Data = w.buf.Data[:need]

	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	frames := n / w.channels
	if frames == 0 {
		return 0, io.EOF
	}
	for f := range frames {
		sum := 0
		for c := range w.channels {
			sum += w.buf.Data[f*w.channels+c]
		}
		v := sum / w.channels
		if w.unsigned8 {
			v -= 128
		}
		dst[f] = toInt16(v, w.bitDepth)
	}
	return frames, nil
}

// toInt16 rescales a signed sample of the given bit depth to 16 bits.
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	case bitDepth < 16:
		return int16(v << (16 - bitDepth))
	default:
		return int16(v)
	}
}

type mp3Frames struct {
	dec *gomp3.Decoder
	buf []byte
}

func (m *mp3Frames) readFrames(dst []int16) (int, error) {
	need := len(dst) * 4
	if cap(m.buf) < need {
		m.buf = make([]byte, need)
	}
	n, err := io.ReadFull(m.dec, m.buf[:need])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	frames := n / 4
	if frames == 0 {
		return 0, io.EOF
	}
	for f := range frames {
		b := m.buf[f*4:]
		left := int(int16(uint16(b[0]) | uint16(b[1])<<8))
		right := int(int16(uint16(b[2]) | uint16(b[3])<<8))
		dst[f] = int16((left + right) / 2)
	}
	return frames, nil
}

type vorbisFrames struct {
	dec      *oggvorbis.Reader
	channels int
	buf      []float32
}

func (v *vorbisFrames) readFrames(dst []int16) (int, error) {
	need := len(dst) * v.channels
	if cap(v.buf) < need {
		v.buf = make([]float32, need)
	}
	n, err := v.dec.Read(v.buf[:need])
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	frames := n / v.channels
	if frames == 0 {
		return 0, io.EOF
	}
	for f := range frames {
		var sum float32
		for c := range v.channels {
			sum += v.buf[f*v.channels+c]
		}
		s := float64(sum) / float64(v.channels) * math.MaxInt16
		dst[f] = int16(min(max(s, math.MinInt16), math.MaxInt16))
	}
	return frames, nil
}
