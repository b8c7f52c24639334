// SPDX-License-Identifier: MIT
package analysis

import "context"

// BlockSink is implemented by components that consume captured audio blocks.
// Ingest is called from the capture callback in push mode, so implementations
// must not block, perform I/O, or allocate proportionally to the stream.
type BlockSink interface {
	Ingest(block []int16) error
}

// BlockSource produces audio blocks on demand (pull mode). ReadBlock fills dst
// with up to len(dst) samples and returns how many were written. Sources
// should honour ctx where the underlying device allows it.
type BlockSource interface {
	ReadBlock(ctx context.Context, dst []int16) (int, error)
}

// SnapshotSource is implemented by anything that can publish the latest
// derived analysis state to a consumer running at its own frame rate.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Snapshot is an immutable copy of the derived analysis state. Readers never
// observe a partially updated band vector.
type Snapshot struct {
	Seq         uint64      `json:"seq"`    // Incremented on every published update.
	Volume      float64     `json:"volume"` // Gated, normalized volume in [0,1].
	Level       float64     `json:"level"`  // Smoothed RMS in raw sample units.
	Bands       []float64   `json:"bands"`  // Smoothed per-band values, len == NumBands.
	Calibration Calibration `json:"calibration"`
}

// Compile-time checks for interface implementations.
var _ BlockSink = (*Analyzer)(nil)
var _ SnapshotSource = (*Analyzer)(nil)
