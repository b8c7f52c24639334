// SPDX-License-Identifier: MIT
/*
Package analysis turns captured microphone blocks into the two signals an
audio-reactive renderer consumes: a normalized volume in [0,1] and a smoothed
vector of logarithmically spaced frequency bands.

Thread Safety:
  - Ingest and Calibrate are writers and are serialized by a mutex.
  - Readers (Volume, FrequencyBands, Snapshot, ...) only see state published
    at the end of a write, so a render frame never observes a half-updated
    band vector.
  - All buffers are allocated at construction; Ingest does not allocate.
*/
package analysis

import (
	"encoding/binary"
	"fmt"
	"sync"

	applog "audioreact/internal/log"
)

// published is the reader-visible copy of the derived state.
type published struct {
	seq         uint64
	level       float64
	calibration Calibration
	bands       []float64
}

// Analyzer owns every piece of mutable analysis state: volume history,
// calibration model and band history. Independent
// instances do not share anything.
type Analyzer struct {
	cfg    Config
	logger *applog.Logger
	clock  clock

	mu          sync.Mutex // Serializes writers.
	calibration Calibration
	loudness    *LoudnessEstimator
	spectrum    *SpectralAnalyzer
	decoded     []int16 // IngestBytes scratch.
	failures    int     // Consecutive failed ingests, for log rate limiting.

	pubMu sync.RWMutex
	pub   published
}

// New creates an Analyzer with default calibration (max volume and noise
// floor from cfg, dynamic range 1.0) and zeroed histories.
func New(cfg Config) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	a := &Analyzer{
		cfg:    cfg,
		logger: applog.New("analysis"),
		clock:  realClock{},
		calibration: Calibration{
			MaxVolume:    cfg.DefaultMaxVolume,
			NoiseFloor:   cfg.DefaultNoiseFloor,
			DynamicRange: 1.0,
		},
		decoded: make([]int16, cfg.ChunkSize),
		pub: published{
			bands: make([]float64, cfg.NumBands),
		},
	}
	a.loudness = NewLoudnessEstimator(cfg.VolumeHistoryDepth, &a.calibration)
	a.spectrum = NewSpectralAnalyzer(cfg, &a.calibration)
	a.pub.calibration = a.calibration

	a.logger.Infof("Initializing analyzer (Chunk: %d, SampleRate: %.1f Hz, Bands: %d, Window: %v)",
		cfg.ChunkSize, cfg.SampleRate, cfg.NumBands, cfg.Window)
	return a, nil
}

// Config returns the configuration the analyzer was built with.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Ingest analyzes one block of any length: loudness over the whole block,
// spectrum over its first ChunkSize samples when it holds that many. Empty
// blocks are rejected with a *ProcessingError and the previously published
// state is kept. The error is logged once per failure streak
// and returned for callers that want the status; push-mode callers may
// ignore it.
func (a *Analyzer) Ingest(block []int16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ingestLocked(block)
}

// IngestBytes decodes little-endian signed 16-bit PCM and ingests it. p may
// hold at most ChunkSize samples, the size of the decode buffer allocated by
// New; longer input is rejected without touching state.
func (a *Analyzer) IngestBytes(p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(p)%2 != 0 {
		return a.fail(&ProcessingError{Op: "decode", Len: len(p), Err: errOddByteCount})
	}
	n := len(p) / 2
	if n > len(a.decoded) {
		return a.fail(&ProcessingError{Op: "decode", Len: len(p), Err: errOversizeBlock})
	}
	for i := range n {
		a.decoded[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
	}
	return a.ingestLocked(a.decoded[:n])
}

func (a *Analyzer) ingestLocked(block []int16) error {
	if err := a.loudness.Ingest(block); err != nil {
		return a.fail(err)
	}
	// The spectrum runs after the loudness update so it normalizes with the
	// dynamic range of this block. A failed transform leaves the band
	// history untouched; the new level is still published.
	if _, err := a.spectrum.Ingest(block); err != nil {
		a.publish()
		return a.fail(err)
	}

	if a.failures > 0 {
		a.logger.Infof("Audio processing recovered after %d failed blocks", a.failures)
		a.failures = 0
	}
	a.publish()
	return nil
}

// fail records err for log rate limiting and returns it.
func (a *Analyzer) fail(err error) error {
	if a.failures == 0 {
		a.logger.Warnf("Audio processing error: %v", err)
	}
	a.failures++
	return err
}

// publish copies the writer state into the reader-visible snapshot. Called
// with a.mu held.
func (a *Analyzer) publish() {
	a.pubMu.Lock()
	a.pub.seq++
	a.pub.level = a.loudness.Volume()
	a.pub.calibration = a.calibration
	copy(a.pub.bands, a.spectrum.Bands())
	a.pubMu.Unlock()
}

// setCalibration overwrites max volume and noise floor, keeping the current
// dynamic range.
func (a *Analyzer) setCalibration(maxVolume, noiseFloor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calibration.MaxVolume = maxVolume
	a.calibration.NoiseFloor = noiseFloor
	a.publish()
}

// Volume returns the gated, normalized volume in [0,1].
func (a *Analyzer) Volume() float64 {
	a.pubMu.RLock()
	defer a.pubMu.RUnlock()
	return a.pub.calibration.Normalize(a.pub.level)
}

// Level returns the smoothed RMS in raw sample units, before gating.
func (a *Analyzer) Level() float64 {
	a.pubMu.RLock()
	defer a.pubMu.RUnlock()
	return a.pub.level
}

// Calibration returns the current calibration model.
func (a *Analyzer) Calibration() Calibration {
	a.pubMu.RLock()
	defer a.pubMu.RUnlock()
	return a.pub.calibration
}

// FrequencyBands returns a copy of the smoothed band vector. It always has
// NumBands elements; values are not clamped and may exceed the dynamic range.
func (a *Analyzer) FrequencyBands() []float64 {
	bands := make([]float64, a.cfg.NumBands)
	a.BandsInto(bands)
	return bands
}

// BandsInto copies the smoothed band vector into dst without allocating.
// dst must have exactly NumBands elements.
func (a *Analyzer) BandsInto(dst []float64) error {
	if len(dst) != a.cfg.NumBands {
		return fmt.Errorf("destination slice length %d does not match band count %d", len(dst), a.cfg.NumBands)
	}
	a.pubMu.RLock()
	copy(dst, a.pub.bands)
	a.pubMu.RUnlock()
	return nil
}

// BandEdges returns NumBands+1 frequencies in Hz bounding the bands: the
// lower edge of each band, then the Nyquist frequency. Empty low bands share
// their edge with the next band.
func (a *Analyzer) BandEdges() []float64 {
	return a.spectrum.bandEdges(a.cfg.SampleRate)
}

// Snapshot returns a consistent copy of the published state.
func (a *Analyzer) Snapshot() Snapshot {
	s := Snapshot{Bands: make([]float64, a.cfg.NumBands)}
	a.SnapshotInto(&s)
	return s
}

// SnapshotInto fills dst with the published state, reusing dst.Bands when it
// has room for NumBands values.
func (a *Analyzer) SnapshotInto(dst *Snapshot) {
	if cap(dst.Bands) < a.cfg.NumBands {
		dst.Bands = make([]float64, a.cfg.NumBands)
	}
	dst.Bands = dst.Bands[:a.cfg.NumBands]

	a.pubMu.RLock()
	defer a.pubMu.RUnlock()
	copy(dst.Bands, a.pub.bands)
	dst.Seq = a.pub.seq
	dst.Volume = a.pub.calibration.Normalize(a.pub.level)
	dst.Level = a.pub.level
	dst.Calibration = a.pub.calibration
}
