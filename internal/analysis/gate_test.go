// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"audioreact/pkg/utils"
)

func TestCalibrationNormalize(t *testing.T) {
	def := Calibration{MaxVolume: 5000, NoiseFloor: 500, DynamicRange: 1.0}

	tests := []struct {
		name  string
		cal   Calibration
		level float64
		want  float64
	}{
		{"Silence", def, 0, 0},
		{"Just below gate", def, 599.999, 0},
		{"Above gate", def, 601, 101.0 / 4500},
		{"Midpoint", def, 2750, 0.5},
		{"Max volume", def, 5000, 1},
		{"Above max clamps", def, 9000, 1},
		{"Dynamic range scales", Calibration{5000, 500, 0.5}, 2750, 0.25},
		{"Degenerate span", Calibration{500, 500, 1.0}, 4000, 0},
		{"Zero model", Calibration{0, 0, 1.0}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cal.Normalize(tt.level)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Normalize(%f) = %f, want %f", tt.level, got, tt.want)
			}
		})
	}
}

func TestNormalizeMonotonicAndClamped(t *testing.T) {
	cal := Calibration{MaxVolume: 4000, NoiseFloor: 300, DynamicRange: 1.7}
	prev := 0.0
	for level := 0.0; level <= 20000; level += 25 {
		got := cal.Normalize(level)
		if got < 0 || got > 1 {
			t.Fatalf("Normalize(%f) = %f outside [0,1]", level, got)
		}
		if got < prev {
			t.Fatalf("Normalize(%f) = %f decreased from %f", level, got, prev)
		}
		prev = got
	}
}

// Volume is monotonic in the raw level even though the dynamic range adapts
// with it, because both factors are non-decreasing.
func TestVolumeMonotonicInLevel(t *testing.T) {
	prev := 0.0
	for value := int16(0); value < 30000; value += 250 {
		a := newTestAnalyzer(t)
		ingestN(t, a, utils.GenerateConstant(testChunkSize, value), DefaultVolumeHistoryDepth)

		got := a.Volume()
		if got < 0 || got > 1 {
			t.Fatalf("Volume() = %f outside [0,1] at level %d", got, value)
		}
		if got < prev {
			t.Fatalf("Volume() decreased from %f to %f at level %d", prev, got, value)
		}
		prev = got
	}
	if prev != 1 {
		t.Errorf("loudest level should saturate at 1, got %f", prev)
	}
}

func TestNoiseGateSilencesQuietInput(t *testing.T) {
	a := newTestAnalyzer(t)
	// 550 is above the noise floor (500) but below the gate (600).
	ingestN(t, a, utils.GenerateConstant(testChunkSize, 550), DefaultVolumeHistoryDepth)

	if a.Level() >= DefaultNoiseFloor*noiseGateFactor {
		t.Fatalf("test level %f is not below the gate", a.Level())
	}
	if got := a.Volume(); got != 0 {
		t.Errorf("Volume() = %f below the gate, want 0", got)
	}
}
