// SPDX-License-Identifier: MIT
package analysis

import "gonum.org/v1/gonum/floats"

// volumeHistory is a fixed-capacity FIFO of per-block RMS values. It starts
// filled with zeros, so the smoothed volume ramps up over the first depth
// blocks.
type volumeHistory struct {
	values []float64
	next   int
}

func newVolumeHistory(depth int) *volumeHistory {
	return &volumeHistory{values: make([]float64, depth)}
}

// push evicts the oldest value and returns the mean of the history.
func (h *volumeHistory) push(v float64) float64 {
	h.values[h.next] = v
	h.next = (h.next + 1) % len(h.values)
	return floats.Sum(h.values) / float64(len(h.values))
}

// bandHistory keeps the last depth normalized band vectors. Each row is one
// frame; rows are reused in ring order so pushes never allocate.
type bandHistory struct {
	rows [][]float64
	next int
}

func newBandHistory(depth, numBands int) *bandHistory {
	rows := make([][]float64, depth)
	for i := range rows {
		rows[i] = make([]float64, numBands)
	}
	return &bandHistory{rows: rows}
}

// push replaces the oldest frame with frame and writes the per-band mean
// across all frames into dst.
func (h *bandHistory) push(frame, dst []float64) {
	copy(h.rows[h.next], frame)
	h.next = (h.next + 1) % len(h.rows)

	for i := range dst {
		dst[i] = 0
	}
	for _, row := range h.rows {
		floats.Add(dst, row)
	}
	floats.Scale(1/float64(len(h.rows)), dst)
}
