// tremor 读取 LSM6DSL 加速度计，实时判断震颤 / 异动并驱动指示器。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"tremor"
)

var version = "dev"

type options struct {
	configFile string
	logLevel   string
	port       string
	baud       int
	record     string
	trace      string
	leds       bool
	tone       bool
	coldStart  string
	fast       bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:     "tremor",
		Short:   "Streaming tremor / dyskinesia detector",
		Version: version,
		Long: `tremor polls an LSM6DSL accelerometer through a serial I2C bridge,
analyses the spectrum of the acceleration magnitude every sample and
drives tremor, dyskinesia, strong-signal and collecting indicators.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.trace, "trace", "", "write per-tick CSV trace to this file")
	root.PersistentFlags().BoolVar(&opts.leds, "leds", false, "drive the LEDs under /sys/class/leds")
	root.PersistentFlags().BoolVar(&opts.tone, "tone", false, "play indicator tones on the default audio device")
	root.PersistentFlags().StringVar(&opts.coldStart, "cold-start", "", "gate or zero-fill")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live detection loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, "")
		},
	}
	runCmd.Flags().StringVarP(&opts.port, "port", "p", "", "serial port of the I2C bridge")
	runCmd.Flags().IntVarP(&opts.baud, "baud", "b", 0, "serial baud rate")
	runCmd.Flags().StringVar(&opts.record, "record", "", "record raw acceleration to a WAV file")

	replayCmd := &cobra.Command{
		Use:   "replay <file.wav>",
		Short: "Run the detector over a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}
	replayCmd.Flags().BoolVar(&opts.fast, "fast", false, "do not pace playback at the sample rate")

	plotCmd := &cobra.Command{
		Use:   "plot <file.wav> <out.png>",
		Short: "Plot the spectrum of the last window of a recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return plotRecording(opts, args[0], args[1])
		},
	}

	root.AddCommand(runCmd, replayCmd, plotCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, root); err != nil {
		os.Exit(1)
	}
}

func loadConfig(opts *options) (*tremor.Config, error) {
	cfg, err := tremor.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.port != "" {
		cfg.Sensor.Port = opts.port
	}
	if opts.baud > 0 {
		cfg.Sensor.BaudRate = opts.baud
	}
	if opts.record != "" {
		cfg.Capture.RecordFile = opts.record
	}
	if opts.trace != "" {
		cfg.Capture.TraceFile = opts.trace
	}
	if opts.leds {
		cfg.Indicators.LEDs = true
	}
	if opts.tone {
		cfg.Indicators.Tone = true
	}
	if opts.coldStart != "" {
		cfg.Analysis.ColdStart = opts.coldStart
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts *options, replayFile string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := tremor.NewLogger(os.Stderr, opts.logLevel)

	system := tremor.NewTremorSystem(cfg, log)
	if replayFile != "" {
		system.SetReplayFile(replayFile, opts.fast)
	}

	// 传感器身份不符等初始化错误直接退出，不进入主循环
	if err := system.Start(); err != nil {
		return fmt.Errorf("system start failed: %w", err)
	}

	runErr := system.Run(ctx)
	summary := system.Stop()
	log.Info("Shutting down",
		"ticks", summary.Ticks,
		"analyzed", summary.Analyzed,
		"tremor", summary.Tremor,
		"dyskinesia", summary.Dyskinesia,
		"strong", summary.Strong,
	)
	return runErr
}

func plotRecording(opts *options, in, out string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	bins, result, err := tremor.SnapshotRecording(in, cfg)
	if err != nil {
		return err
	}
	png, err := tremor.RenderSpectrum(bins, result, cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s: %s (tremor bins %d, dyskinesia bins %d, strong %v)\n",
		in, result.Class, result.TremorCount, result.DyskinesiaCount, result.StrongSignal)
	return nil
}
