// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"audioreact/internal/analysis"
	"audioreact/internal/audio"
	"audioreact/internal/config"
	"audioreact/pkg/utils"
)

type blockList struct {
	blocks [][]int16
	err    error
}

func (b *blockList) ReadBlock(_ context.Context, dst []int16) (int, error) {
	if len(b.blocks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(dst, b.blocks[0])
	b.blocks = b.blocks[1:]
	return n, nil
}

func TestAnalyzeSourcePrintsFramesAndSummary(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.VolumeHistoryDepth = 1
	cfg.BandHistoryDepth = 1
	a, err := analysis.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	src := &blockList{}
	// 1024 samples at 44.1 kHz is ~23ms, so every fourth block prints.
	for range 8 {
		src.blocks = append(src.blocks, utils.GenerateConstant(cfg.ChunkSize, 5000))
	}

	var out bytes.Buffer
	if err := analyzeSource(context.Background(), a, src, &out); err != nil {
		t.Fatalf("analyzeSource() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want band edges, 2 frames and a summary:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "band edges (Hz): [43 ") || !strings.HasSuffix(lines[0], " 22050]") {
		t.Errorf("band edges line = %q", lines[0])
	}
	// Level 5000 is the default max volume.
	if !strings.Contains(lines[2], "volume=1.000") {
		t.Errorf("frame line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "analyzed 8 blocks (186ms)") || !strings.Contains(lines[3], "peak 1.000") {
		t.Errorf("summary = %q", lines[3])
	}
}

func TestAnalyzeSourceErrors(t *testing.T) {
	a, err := analysis.New(analysis.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := analyzeSource(context.Background(), a, &blockList{}, io.Discard); err == nil {
		t.Error("expected error for a source with no audio")
	}

	boom := errors.New("decode failed")
	err = analyzeSource(context.Background(), a, &blockList{err: boom}, io.Discard)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestRunAnalysisOnRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	rec := audio.NewRecorder(22050, 512)
	if err := rec.Start(path); err != nil {
		t.Fatal(err)
	}
	for range 20 {
		if err := rec.Write(utils.GenerateSineWave(512, 22050, 1000, 8000)); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Audio.ChunkSize = 512
	var out bytes.Buffer
	if err := RunAnalysis(context.Background(), &cfg, path, &out); err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}
	if !strings.Contains(out.String(), "analyzed 20 blocks") {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunAnalysisUnsupportedFile(t *testing.T) {
	cfg := config.Default()
	err := RunAnalysis(context.Background(), &cfg, filepath.Join(t.TempDir(), "x.flac"), io.Discard)
	if err == nil {
		t.Error("expected error")
	}
}
