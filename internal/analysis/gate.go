// SPDX-License-Identifier: MIT
package analysis

// noiseGateFactor sets the hard cutoff: any smoothed volume below
// noiseFloor * noiseGateFactor reads as silence.
const noiseGateFactor = 1.2

// GateOpen reports whether level passes the noise gate for c.
func (c Calibration) GateOpen(level float64) bool {
	return level >= c.NoiseFloor*noiseGateFactor
}

// Normalize maps a smoothed RMS level to [0,1]. Levels below the gate read 0.
// A model with max volume equal to the noise floor is degenerate and also
// reads 0.
func (c Calibration) Normalize(level float64) float64 {
	if !c.GateOpen(level) {
		return 0
	}
	span := c.MaxVolume - c.NoiseFloor
	if span == 0 {
		return 0
	}
	return clamp((level-c.NoiseFloor)/span*c.DynamicRange, 0, 1)
}
