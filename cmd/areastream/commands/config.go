package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configFormat string

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the stored capture settings",
	}

	configShowCmd = &cobra.Command{
		Use:   "show [capture|preview]",
		Short: "Print the stored settings, or one section of them",
		Example: `  areastream config show
  areastream config show capture --format json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"capture", "preview"},
		RunE:      runConfigShow,
	}

	configGetCmd = &cobra.Command{
		Use:     "get KEY...",
		Short:   "Print one or more settings",
		Example: `  areastream config get capture.framerate capture.window_key`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runConfigGet,
	}

	configSetCmd = &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a setting and save it",
		Long: "Change a setting and save it. Known keys:\n  " +
			strings.Join(config.Keys(), "\n  "),
		Example: `  areastream config set capture.framerate 60
  areastream config set capture.custom_area 0,0,1280,720
  areastream config set auto_exit true`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print where the settings file lives",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
)

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "yaml or json")
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func openConfig() (*config.Manager, error) {
	m, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return m, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}
	cfg := m.Get()

	var v any = cfg
	if len(args) == 1 {
		switch args[0] {
		case "capture":
			v = cfg.Capture
		case "preview":
			v = cfg.Preview
		default:
			return fmt.Errorf("unknown section %q", args[0])
		}
	}
	return encodeConfig(cmd.OutOrStdout(), configFormat, v)
}

func encodeConfig(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, key := range args {
		value, err := m.Lookup(key)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintln(out, value)
		} else {
			fmt.Fprintf(out, "%s=%s\n", key, value)
		}
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}
	if err := m.Set(args[0], args[1]); err != nil {
		return err
	}

	value, _ := m.Lookup(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", args[0], value, m.GetConfigPath())
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), m.GetConfigPath())
	return nil
}
