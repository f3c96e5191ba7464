package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "drawfilter",
		Short: "drawfilter - detection overlay stage for video pipelines",
		Long: `drawfilter overlays object-detection boxes on live video frames.

Detectors push result batches asynchronously; every frame passing through
the stage gets the freshest batch drawn on it, either directly into the
NV12 image or as a palette OSD region handed to an overlay sink.

Features:
  • Software NV12 outline rendering with edge clamping
  • Hardware OSD region builder (16-pixel aligned, 8-bit palette)
  • Staleness filtering against the frame clock
  • REST and websocket ingest for detection results
  • MJPEG preview with OSD regions composited`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(viper.GetString("log_level"), viper.GetBool("log_pretty"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/drawfilter/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "human readable console logs")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}

func initConfig() {
	// A missing .env is fine
	_ = godotenv.Load()

	viper.SetEnvPrefix("DRAWFILTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
