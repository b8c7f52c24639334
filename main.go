// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"audioreact/cmd"
	"audioreact/internal/audio"
	"audioreact/internal/build"
	"audioreact/internal/log"
	"audioreact/internal/tui"
)

var logger = log.New("main")

// main is the entry point for the audio analysis application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start capture, feeding blocks into the analyzer
//   - Begin recording if enabled
//   - Calibrate against the live input
//   - Start transports and the monitor
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or monitor exit
//   - Stop transports, capture and recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no ldflags; run with "unknown" build info.
	if err := build.Initialize(); err != nil {
		logger.Debugf("Build information incomplete: %v", err)
	}

	// One thread for the audio callback, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	// Help or version flag output only.
	if !opts.Run {
		return
	}
	if opts.Command == cmd.CommandVersion {
		fmt.Println(build.GetBuildFlags())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// File analysis needs no audio device.
	if opts.Command == cmd.CommandAnalyze {
		if err := cmd.RunAnalysis(ctx, opts.Config, opts.Input, os.Stdout); err != nil {
			logger.Fatalf("%v", err)
		}
		return
	}

	if err := audio.Initialize(); err != nil {
		logger.Fatalf("%v", err)
	}
	defer audio.Terminate()

	if opts.Command != "" {
		if err := executeCommand(ctx, opts); err != nil {
			logger.Errorf("%v", err)
			audio.Terminate()
			os.Exit(1)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	pipeline, err := cmd.NewPipeline(opts.Config)
	if err != nil {
		logger.Errorf("%v", err)
		return
	}

	// CRITICAL: Start of real-time audio processing. From here PortAudio
	// calls into the analyzer on every block.
	if err := pipeline.Start(ctx, opts.Output); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("%v", err)
	} else if ctx.Err() == nil {
		if opts.NoTUI {
			logger.Infof("Running, press Ctrl+C to stop")
			<-ctx.Done()
		} else if err := runMonitor(pipeline); err != nil {
			logger.Errorf("Monitor failed: %v", err)
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := pipeline.Close(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	if path := pipeline.RecordingPath(); path != "" {
		fmt.Printf("\nRecording saved to: %s\n", path)
	}
}

// monitorLogFile receives log output while the monitor owns the terminal.
const monitorLogFile = "audioreact.log"

func runMonitor(pipeline *cmd.Pipeline) error {
	f, err := os.OpenFile(monitorLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	log.SetOutput(f)
	defer log.SetOutput(os.Stderr)
	return tui.RunMonitor(pipeline.Analyzer(), tui.DefaultFrameInterval)
}

// executeCommand handles one-off commands that don't run the live pipeline.
func executeCommand(ctx context.Context, opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandDevices:
		sel, err := tui.PickDevice()
		if errors.Is(err, tui.ErrNoSelection) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Selected device %d at %.0f Hz. Run with --device %d --sample-rate %.0f\n",
			sel.DeviceID, sel.SampleRate, sel.DeviceID, sel.SampleRate)
		return nil
	case cmd.CommandCalibrate:
		return cmd.RunCalibration(ctx, opts.Config, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}
