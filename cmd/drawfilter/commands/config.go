package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage drawfilter configuration",
	Long:  `View and manage drawfilter configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current drawfilter configuration.`,
	Example: `  # Show configuration as YAML (default)
  drawfilter config show

  # Show configuration as JSON
  drawfilter config show --format json`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var configParamsCmd = &cobra.Command{
	Use:   "params [PARAM_STRING]",
	Short: "Show or check stage parameters",
	Long: `Without arguments, print the filter section as a stage parameter
string. With an argument, parse it and print the resulting filter
configuration, or the parse error.`,
	Example: `  drawfilter config params
  drawfilter config params "need_hw_draw=1,draw_rect_thick=4"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigParams,
}

var configSetParamsCmd = &cobra.Command{
	Use:   "set-params PARAM_STRING",
	Short: "Update the filter section from a parameter string",
	Example: `  drawfilter config set-params "need_hw_draw=1
draw_rect_thick=3"`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetParams,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configParamsCmd)
	configCmd.AddCommand(configSetParamsCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func encode(v interface{}) error {
	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return encode(configMgr.Get())
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fmt.Println(configMgr.GetConfigPath())
	return nil
}

func runConfigParams(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		fc, err := config.ParseParams(args[0])
		if err != nil {
			return err
		}
		return encode(fc)
	}

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fmt.Println(configMgr.Get().Filter.Params())
	return nil
}

func runConfigSetParams(cmd *cobra.Command, args []string) error {
	fc, err := config.ParseParams(args[0])
	if err != nil {
		return err
	}

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()
	cfg.Filter = fc
	if err := configMgr.Update(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Filter parameters saved to %s\n", configMgr.GetConfigPath())
	return nil
}
