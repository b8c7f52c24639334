// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"audioreact/internal/analysis"
	"audioreact/internal/audio"
	"audioreact/internal/config"
)

// RunAnalysis pulls every block of the audio file at path through a fresh
// analyzer and prints the band edges, then the derived signals about ten
// times per second of audio, followed by a summary line.
func RunAnalysis(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	src, err := audio.OpenFile(path)
	if err != nil {
		return err
	}
	defer src.Close()

	acfg := cfg.AnalysisConfig()
	acfg.SampleRate = float64(src.SampleRate())
	analyzer, err := analysis.New(acfg)
	if err != nil {
		return err
	}
	return analyzeSource(ctx, analyzer, src, w)
}

func analyzeSource(ctx context.Context, analyzer *analysis.Analyzer, src analysis.BlockSource, w io.Writer) error {
	acfg := analyzer.Config()
	blockDuration := time.Duration(float64(acfg.ChunkSize) / acfg.SampleRate * float64(time.Second))
	every := max(int(100*time.Millisecond/max(blockDuration, 1)), 1)

	if _, err := fmt.Fprintf(w, "band edges (Hz): %.0f\n", analyzer.BandEdges()); err != nil {
		return err
	}

	block := make([]int16, acfg.ChunkSize)
	var (
		snap      analysis.Snapshot
		blocks    int
		elapsed   time.Duration
		peak      float64
		volumeSum float64
	)
	for {
		n, err := src.ReadBlock(ctx, block)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		_ = analyzer.Ingest(block[:n])
		elapsed += time.Duration(float64(n) / acfg.SampleRate * float64(time.Second))
		blocks++

		analyzer.SnapshotInto(&snap)
		peak = max(peak, snap.Volume)
		volumeSum += snap.Volume
		if blocks%every == 0 {
			if _, err := fmt.Fprintf(w, "%8s  volume=%.3f  bands=%.2f\n",
				elapsed.Round(time.Millisecond), snap.Volume, snap.Bands); err != nil {
				return err
			}
		}
	}

	if blocks == 0 {
		return fmt.Errorf("no audio decoded")
	}
	_, err := fmt.Fprintf(w, "analyzed %d blocks (%s): mean volume %.3f, peak %.3f\n",
		blocks, elapsed.Round(time.Millisecond), volumeSum/float64(blocks), peak)
	return err
}
