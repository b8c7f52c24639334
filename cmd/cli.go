// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"audioreact/internal/build"
	"audioreact/internal/config"
	"audioreact/internal/log"
)

// Commands that run instead of the live pipeline.
const (
	CommandList      = "list"
	CommandDevices   = "devices"
	CommandCalibrate = "calibrate"
	CommandVersion   = "version"
	CommandAnalyze   = "analyze"
)

// Options is the parsed command line.
type Options struct {
	Command    string // Empty for the live pipeline.
	Run        bool   // False when cobra only printed help.
	ConfigPath string
	NoTUI      bool
	Verbose    bool
	Record     bool
	Output     string // Recording path; generated when empty.
	Input      string // Audio file for the analyze command.

	Config *config.Config // Loaded config with flag overrides applied.
}

// overrides holds flag values that are only applied when set explicitly, so
// the config file and environment keep precedence over flag defaults.
type overrides struct {
	device     int
	sampleRate float64
	chunkSize  int
	bands      int
	calibrate  float64
	udp        string
	ws         string
}

// ParseArgs parses args (without the program name), loads the configuration
// and applies flag overrides.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var ov overrides

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-reactive analysis: volume and frequency bands from a live input",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(options.ConfigPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, options, ov); err != nil {
				return err
			}
			options.Config = cfg
			options.Run = true
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	command := func(name, short string) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				options.Command = name
				return nil
			},
		}
	}
	rootCmd.AddCommand(
		command(CommandList, "List available audio devices"),
		command(CommandDevices, "Pick an input device interactively"),
		command(CommandCalibrate, "Measure noise floor and max volume, then exit"),
		command(CommandVersion, "Print build information"),
		&cobra.Command{
			Use:   CommandAnalyze + " FILE",
			Short: "Analyze a WAV, AIFF, MP3 or Ogg Vorbis file and print volume and bands",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				options.Command = CommandAnalyze
				options.Input = args[0]
				return nil
			},
		},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to a YAML config file (default: ./config.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&ov.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.Float64VarP(&ov.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&ov.chunkSize, "chunk-size", "b", config.DefaultChunkSize,
		"Samples per block and FFT size (power of two)")

	// Analysis Configuration
	flags.IntVarP(&ov.bands, "bands", "n", config.DefaultNumBands,
		"Number of logarithmic frequency bands")
	flags.Float64Var(&ov.calibrate, "calibrate", 3,
		"Startup calibration length in seconds, 0 disables")

	// Recording Configuration
	flags.BoolVarP(&options.Record, "record", "r", false,
		"Record audio from the input device")
	flags.StringVarP(&options.Output, "output", "o", "",
		"Output file name. Default is <output_dir>/recording-DD-MM-YYYY-HHMMSS.wav")

	// Transports
	flags.StringVar(&ov.udp, "udp", "",
		"Send band packets over UDP to host:port")
	flags.StringVar(&ov.ws, "ws", "",
		"Serve snapshots over WebSocket on host:port at /ws")
	flags.BoolVar(&options.NoTUI, "no-tui", false,
		"Run without the terminal monitor until interrupted")

	// Debug Configuration
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies explicitly set flags into cfg and revalidates it.
func applyFlags(cmd *cobra.Command, cfg *config.Config, options *Options, ov overrides) error {
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = ov.device
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = ov.sampleRate
	}
	if flags.Changed("chunk-size") {
		cfg.Audio.ChunkSize = ov.chunkSize
	}
	if flags.Changed("bands") {
		cfg.Analysis.NumBands = ov.bands
	}
	if flags.Changed("calibrate") {
		cfg.Analysis.CalibrationSeconds = ov.calibrate
	}
	if flags.Changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = ov.udp
	}
	if flags.Changed("ws") {
		cfg.Transport.WSEnabled = true
		cfg.Transport.WSAddress = ov.ws
	}
	if options.Record {
		cfg.Recording.Enabled = true
	}
	if options.Verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	return nil
}
