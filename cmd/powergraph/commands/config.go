package commands

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/config"
	"github.com/hillwire/powergraph/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize powergraph configuration",
	Long: `Show or initialize powergraph configuration.

Configuration merges defaults, ~/.powergraph/config.toml, a project-local
powergraph.toml, and POWERGRAPH_* environment variables.

Examples:
  powergraph config show    # Show the effective merged configuration
  powergraph config init    # Write a default config file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  "Write a config file populated with defaults to ~/.powergraph/config.toml. Refuses to overwrite an existing file.",
	RunE:  runConfigInit,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("path", "", "Write to this path instead of the user config location")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to render configuration")
	}

	fmt.Print(string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = config.UserConfigPath()
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	pterm.Success.Printf("Wrote default configuration to %s\n", path)
	return nil
}
