// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"audioreact/pkg/utils"
)

const (
	testChunkSize  = 1024
	testSampleRate = 44100
)

func newTestAnalyzer(t testing.TB, mutate ...func(*Config)) *Analyzer {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func ingestN(t testing.TB, a *Analyzer, block []int16, n int) {
	t.Helper()
	for range n {
		if err := a.Ingest(block); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name  string
		block []int16
		want  float64
		tol   float64
	}{
		{"Silence", make([]int16, testChunkSize), 0, 0},
		{"Constant", utils.GenerateConstant(testChunkSize, 1000), 1000, 0},
		{"Negative full scale", utils.GenerateConstant(testChunkSize, math.MinInt16), 32768, 0},
		{"Sine", utils.GenerateBinSine(testChunkSize, 37, 10000), 10000 / math.Sqrt2, 1},
		{"Empty", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.block)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("RMS() = %f, want %f ± %f", got, tt.want, tt.tol)
			}
		})
	}
}

func TestVolumeIsMeanOfHistory(t *testing.T) {
	a := newTestAnalyzer(t)
	block := utils.GenerateConstant(testChunkSize, 100)

	ingestN(t, a, block, 1)
	if got := a.Level(); math.Abs(got-10) > 1e-9 {
		t.Errorf("level after one block = %f, want 10 (history starts at zero)", got)
	}

	ingestN(t, a, block, DefaultVolumeHistoryDepth-1)
	if got := a.Level(); math.Abs(got-100) > 1e-9 {
		t.Errorf("level after full history = %f, want 100", got)
	}
}

func TestSilenceDrivesVolumeToZero(t *testing.T) {
	a := newTestAnalyzer(t)
	ingestN(t, a, utils.GenerateConstant(testChunkSize, 12000), 5)
	ingestN(t, a, make([]int16, testChunkSize), DefaultVolumeHistoryDepth)

	if got := a.Level(); got != 0 {
		t.Errorf("level after a full history of silence = %f, want 0", got)
	}
	if got := a.Volume(); got != 0 {
		t.Errorf("volume after silence = %f, want 0", got)
	}
}

func TestDynamicRangeFollowsLoudPassages(t *testing.T) {
	tests := []struct {
		name  string
		value int16
		want  float64
	}{
		{"Clamped low", 1000, 0.5},   // 1000/5000 = 0.2
		{"Proportional", 8000, 1.6},  // 8000/5000
		{"Clamped high", 20000, 2.0}, // 20000/5000 = 4
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t)
			ingestN(t, a, utils.GenerateConstant(testChunkSize, tt.value), DefaultVolumeHistoryDepth)
			if got := a.Calibration().DynamicRange; math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("dynamic range = %f, want %f", got, tt.want)
			}
		})
	}
}

// The dynamic range only adapts above the noise floor and never relaxes
// during quiet passages.
func TestDynamicRangeHoldsThroughQuietPassages(t *testing.T) {
	t.Run("Level drops straight to silence", func(t *testing.T) {
		a := newTestAnalyzer(t, func(c *Config) { c.VolumeHistoryDepth = 1 })
		if got := a.Calibration().DynamicRange; got != 1.0 {
			t.Fatalf("initial dynamic range = %f, want 1.0", got)
		}

		ingestN(t, a, utils.GenerateConstant(testChunkSize, 8000), 1)
		if got := a.Calibration().DynamicRange; math.Abs(got-1.6) > 1e-9 {
			t.Fatalf("dynamic range after loud block = %f, want 1.6", got)
		}

		ingestN(t, a, make([]int16, testChunkSize), 5)
		if got := a.Calibration().DynamicRange; math.Abs(got-1.6) > 1e-9 {
			t.Errorf("dynamic range relaxed during silence: got %f, want 1.6", got)
		}

		// A quiet but non-silent level below the noise floor also holds it.
		ingestN(t, a, utils.GenerateConstant(testChunkSize, 400), 5)
		if got := a.Calibration().DynamicRange; math.Abs(got-1.6) > 1e-9 {
			t.Errorf("dynamic range moved below the noise floor: got %f, want 1.6", got)
		}
	})

	t.Run("Level decays through the history", func(t *testing.T) {
		a := newTestAnalyzer(t)
		ingestN(t, a, utils.GenerateConstant(testChunkSize, 8000), DefaultVolumeHistoryDepth)

		// The mean decays 7200, 6400, ..., 800 while still above the floor,
		// so the range follows it down to the 0.5 clamp and then freezes.
		ingestN(t, a, make([]int16, testChunkSize), 3*DefaultVolumeHistoryDepth)
		if got := a.Calibration().DynamicRange; got != minDynamicRange {
			t.Errorf("dynamic range after decay = %f, want %f", got, minDynamicRange)
		}
		ingestN(t, a, utils.GenerateConstant(testChunkSize, 400), 2*DefaultVolumeHistoryDepth)
		if got := a.Calibration().DynamicRange; got != minDynamicRange {
			t.Errorf("dynamic range moved below the noise floor: got %f, want %f", got, minDynamicRange)
		}
	})
}

func TestEmptyBlockKeepsLastVolume(t *testing.T) {
	a := newTestAnalyzer(t)
	ingestN(t, a, utils.GenerateConstant(testChunkSize, 3000), 4)
	before := a.Snapshot()

	err := a.Ingest(nil)
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("Ingest(nil) error = %v, want ErrProcessing", err)
	}
	var perr *ProcessingError
	if !errors.As(err, &perr) || perr.Op != "loudness" {
		t.Errorf("Ingest(nil) error = %#v, want loudness ProcessingError", err)
	}

	after := a.Snapshot()
	if after.Seq != before.Seq || after.Level != before.Level {
		t.Errorf("state changed after failed ingest: before %+v, after %+v", before, after)
	}
}

func TestLongBlockAnalyzesLeadingChunk(t *testing.T) {
	const bin = 40
	long := append(utils.GenerateBinSine(testChunkSize, bin, 12000), make([]int16, testChunkSize)...)

	a := newTestAnalyzer(t)
	if err := a.Ingest(long); err != nil {
		t.Fatalf("Ingest(%d samples) error = %v", len(long), err)
	}

	snap := a.Snapshot()
	if snap.Seq != 1 {
		t.Errorf("seq = %d, want 1", snap.Seq)
	}
	// Loudness covers the whole block, silent tail included.
	if want := RMS(long) / DefaultVolumeHistoryDepth; math.Abs(snap.Level-want) > 1e-9 {
		t.Errorf("level = %f, want %f", snap.Level, want)
	}
	// The spectrum sees only the leading sine.
	want := bandIndexForBin(bin, a.Config().SpectrumLen(), DefaultNumBands)
	if got := argmax(snap.Bands); got != want || snap.Bands[got] <= 0 {
		t.Errorf("loudest band = %d, want %d (bands %v)", got, want, snap.Bands)
	}
}
