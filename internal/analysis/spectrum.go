// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// spectrumWorkspace holds the buffers reused on every block.
type spectrumWorkspace struct {
	input     []float64    // Windowed samples.
	coeffs    []complex128 // One-sided transform output, fftSize/2 + 1.
	magnitude []float64    // |coeffs|.
	raw       []float64    // Folded, normalized bands for the current block.
	window    []float64    // Pre-calculated window coefficients.
}

// SpectralAnalyzer folds the magnitude spectrum of each block into
// logarithmically spaced bands and smooths them over a short history. It
// reads, but does not own, the dynamic range of the calibration model.
type SpectralAnalyzer struct {
	fft       *fourier.FFT
	fftSize   int
	ranges    []bandRange
	history   *bandHistory
	bands     []float64 // Smoothed output.
	cal       *Calibration
	workspace spectrumWorkspace
}

// NewSpectralAnalyzer pre-allocates every buffer for cfg; Ingest never
// allocates afterwards.
func NewSpectralAnalyzer(cfg Config, cal *Calibration) *SpectralAnalyzer {
	spectrumLen := cfg.SpectrumLen()
	return &SpectralAnalyzer{
		fft:     fourier.NewFFT(cfg.ChunkSize),
		fftSize: cfg.ChunkSize,
		ranges:  logBandRanges(spectrumLen, cfg.NumBands),
		history: newBandHistory(cfg.BandHistoryDepth, cfg.NumBands),
		bands:   make([]float64, cfg.NumBands),
		cal:     cal,
		workspace: spectrumWorkspace{
			input:     make([]float64, cfg.ChunkSize),
			coeffs:    make([]complex128, spectrumLen),
			magnitude: make([]float64, spectrumLen),
			raw:       make([]float64, cfg.NumBands),
			window:    windowCoefficients(cfg.ChunkSize, cfg.Window),
		},
	}
}

// Ingest analyzes the first fftSize samples of block. Blocks shorter than the
// FFT size are skipped (false, nil) and the bands keep their previous values.
// On error the history is not touched.
func (s *SpectralAnalyzer) Ingest(block []int16) (bool, error) {
	if len(block) < s.fftSize {
		return false, nil
	}

	ws := &s.workspace
	for i := range s.fftSize {
		ws.input[i] = float64(block[i]) * ws.window[i]
	}

	s.fft.Coefficients(ws.coeffs, ws.input)
	for i, c := range ws.coeffs {
		ws.magnitude[i] = cmplx.Abs(c)
	}

	foldBands(ws.magnitude, s.ranges, ws.raw)
	if peak := floats.Max(ws.raw); math.IsNaN(peak) || math.IsInf(peak, 0) {
		return false, &ProcessingError{Op: "spectrum", Len: len(block), Err: errNonFinite}
	}
	normalizeBands(ws.raw, s.cal.DynamicRange)

	s.history.push(ws.raw, s.bands)
	return true, nil
}

// Bands returns the smoothed band vector. The slice is owned by the analyzer
// and overwritten by the next Ingest.
func (s *SpectralAnalyzer) Bands() []float64 {
	return s.bands
}

// Magnitudes returns the magnitude spectrum of the last analyzed block. The
// slice is owned by the analyzer.
func (s *SpectralAnalyzer) Magnitudes() []float64 {
	return s.workspace.magnitude
}

// frequencyForBin returns the centre frequency in Hz of magnitude bin i.
func (s *SpectralAnalyzer) frequencyForBin(i int, sampleRate float64) float64 {
	if i < 0 || i >= len(s.workspace.magnitude) {
		return 0
	}
	return s.fft.Freq(i) * sampleRate
}

func (s *SpectralAnalyzer) bandEdges(sampleRate float64) []float64 {
	edges := make([]float64, 0, len(s.ranges)+1)
	for _, r := range s.ranges {
		edges = append(edges, s.frequencyForBin(r.start, sampleRate))
	}
	return append(edges, s.frequencyForBin(len(s.workspace.magnitude)-1, sampleRate))
}
