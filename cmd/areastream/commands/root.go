package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "areastream",
		Short: "AreaStream - Live capture of a screen, window or area",
		Long: `AreaStream continuously captures a region of the desktop and shows it
in a live preview window.

Features:
  • Capture one screen, every screen, a single window or a custom area
  • Follow a window across title changes and restarts
  • Composite or blit capture methods, with optional cursor
  • Frame rates from 1 to 240 (common presets: 15, 30, 60)
  • Persistent configuration
  • REST API and websocket events for remote control`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Log to stderr so list and config output stays parseable
			logger.InitWriter(os.Stderr, viper.GetString("log_level"), true)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/areastream/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("fps", 0, "capture frame rate, 1-240 (default is 30)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("capture.framerate", rootCmd.PersistentFlags().Lookup("fps"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	// AREASTREAM_SERVER_PORT, AREASTREAM_LOG_LEVEL, AREASTREAM_CAPTURE_FRAMERATE
	viper.SetEnvPrefix("areastream")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
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

// loadConfig opens the settings file and applies flag and environment
// overrides. Overrides are saved, like any other change.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := map[string]string{}
	for _, key := range []string{"server_port", "log_level", "capture.framerate"} {
		if !viper.IsSet(key) {
			continue
		}
		if v := viper.GetString(key); v != "" && v != "0" {
			overrides[key] = v
		}
	}
	for key, value := range overrides {
		if err := configMgr.Set(key, value); err != nil {
			return nil, fmt.Errorf("invalid override for %s: %w", key, err)
		}
	}

	logger.InitWriter(os.Stderr, configMgr.Get().LogLevel, true)
	return configMgr, nil
}
