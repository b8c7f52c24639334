// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// bandRange is a half-open range [start, end) of magnitude bins.
type bandRange struct {
	start, end int
}

// logBandRanges maps spectrumLen bins onto numBands bands spaced on a
// logarithmic scale: band i covers [spectrumLen^(i/n), spectrumLen^((i+1)/n)).
// Low bands are narrow and may be empty; the top band reaches the Nyquist bin.
func logBandRanges(spectrumLen, numBands int) []bandRange {
	ranges := make([]bandRange, numBands)
	n := float64(numBands)
	l := float64(spectrumLen)
	for i := range ranges {
		start := int(math.Pow(l, float64(i)/n))
		end := int(math.Pow(l, float64(i+1)/n))
		ranges[i] = bandRange{
			start: min(start, spectrumLen),
			end:   min(end, spectrumLen),
		}
	}
	return ranges
}

// foldBands writes the mean magnitude of each band into dst. Empty bands
// (end <= start) are zero.
func foldBands(magnitude []float64, ranges []bandRange, dst []float64) {
	for i, r := range ranges {
		if r.end <= r.start {
			dst[i] = 0
			continue
		}
		dst[i] = floats.Sum(magnitude[r.start:r.end]) / float64(r.end-r.start)
	}
}

// normalizeBands scales dst so its maximum equals scale. A vector whose
// maximum is not positive is left as is.
func normalizeBands(dst []float64, scale float64) {
	peak := floats.Max(dst)
	if peak > 0 {
		floats.Scale(scale/peak, dst)
	}
}
