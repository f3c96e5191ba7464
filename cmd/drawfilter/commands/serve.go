package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/drawfilter/internal/api"
	"github.com/bryanchriswhite/drawfilter/internal/capture"
	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/filter"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/bryanchriswhite/drawfilter/internal/output"
	"github.com/bryanchriswhite/drawfilter/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the draw filter on a live source",
	Long: `Run the capture source through the draw filter and serve the API.

Detection results are accepted on /api/results (JSON) and /api/results/ws
(websocket). The processed video is previewed on /stream and OSD regions
are broadcast on /api/osd/ws.`,
	Example: `  # Test pattern source, software drawing
  drawfilter serve

  # Hardware OSD path with 4px outlines
  drawfilter serve --hardware-draw --thickness 4

  # GStreamer source
  drawfilter serve --source gstreamer --pipeline "v4l2src device=/dev/video0"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("hardware-draw", false, "send boxes as an OSD region instead of drawing into frames")
	serveCmd.Flags().Int("thickness", 0, "outline thickness in pixels")
	serveCmd.Flags().Duration("max-result-age", 0, "largest frame/result clock distance still drawn")
	serveCmd.Flags().String("source", "", "frame source (pattern or gstreamer)")
	serveCmd.Flags().String("pipeline", "", "GStreamer element chain in front of the NV12 conversion")

	viper.BindPFlag("hardware_draw", serveCmd.Flags().Lookup("hardware-draw"))
	viper.BindPFlag("rect_thickness", serveCmd.Flags().Lookup("thickness"))
	viper.BindPFlag("max_result_age", serveCmd.Flags().Lookup("max-result-age"))
	viper.BindPFlag("source", serveCmd.Flags().Lookup("source"))
	viper.BindPFlag("pipeline", serveCmd.Flags().Lookup("pipeline"))
}

// applyOverrides folds flags and DRAWFILTER_* environment into cfg
func applyOverrides(cfg *config.Config) {
	if port := viper.GetInt("server_port"); port > 0 {
		cfg.ServerPort = port
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	if viper.IsSet("hardware_draw") {
		cfg.Filter.HardwareDraw = viper.GetBool("hardware_draw")
	}
	if t := viper.GetInt("rect_thickness"); t > 0 {
		cfg.Filter.RectThickness = t
	}
	if age := viper.GetDuration("max_result_age"); age > 0 {
		cfg.Filter.MaxResultAge = age
	}
	if src := viper.GetString("source"); src != "" {
		cfg.Source.Kind = src
	}
	if p := viper.GetString("pipeline"); p != "" {
		cfg.Source.Pipeline = p
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.Get()
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, viper.GetBool("log_pretty"))
	log := logger.WithComponent("serve")
	log.Info().Str("path", configMgr.GetConfigPath()).Str("log_level", cfg.LogLevel).Msg("Configuration loaded")

	stage := filter.New(cfg.Filter)
	if err := stage.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := capture.Open(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Stop()

	var mjpegOut *output.MJPEGOutput
	var frameSink pipeline.Sink
	hub := api.NewOSDHub()
	sinks := osd.Tee{hub}

	if cfg.Output.Enabled {
		mjpegOut = output.NewMJPEGOutput(output.Config{
			Width:       cfg.Source.Width,
			Height:      cfg.Source.Height,
			FPS:         cfg.Source.FPS,
			JPEGQuality: cfg.Output.JPEGQuality,
		})
		if err := mjpegOut.Start(); err != nil {
			return fmt.Errorf("failed to start MJPEG output: %w", err)
		}
		defer mjpegOut.Stop()
		frameSink = mjpegOut
		sinks = append(sinks, mjpegOut)
	}

	var sink osd.Sink = sinks
	if cfg.Filter.HardwareDraw {
		stage.Control(filter.SetSinkHandle{Sink: sink})
	}

	server := api.NewServer(stage, sink, hub, mjpegOut)
	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	runner := pipeline.NewRunner(source, stage, frameSink)
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("source", source.Name()).
		Bool("hardware_draw", cfg.Filter.HardwareDraw).
		Msg("drawfilter is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Pipeline stopped")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
	if stage.Sink() != nil {
		if err := stage.ClearRegion(cfg.Filter.RegionID); err != nil {
			log.Warn().Err(err).Msg("Failed to clear OSD region")
		}
	}
	cancel()
	return nil
}
