package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/cmd/powergraph/commands"
	"github.com/hillwire/powergraph/config"
	"github.com/hillwire/powergraph/logger"
)

var rootCmd = &cobra.Command{
	Use:   "powergraph",
	Short: "powergraph - Temporal influence-graph engine for legislative networks",
	Long: `powergraph - Temporal influence-graph engine.

Models political entities (staff, members, committees) and the directed,
weighted influence relationships between them; derives control
classifications from the edges; evolves edge state over time; and produces
point-in-time snapshots plus an append-only ledger of power transfers.

Available commands:
  config   - Show or initialize configuration
  db       - Manage the graph database
  ingest   - Process observation batches from upstream agents
  classify - Derive a control classification for an entity
  snapshot - Take and list network snapshots
  ledger   - Record and list power-transfer events

Examples:
  powergraph config show                      # Show current configuration
  powergraph ingest inbox/roster.json         # Process one batch file
  powergraph ingest --watch                   # Watch the inbox directory
  powergraph classify dana-whitfield          # Classify an entity
  powergraph snapshot take committee_markup   # Snapshot at a legislative state
  powergraph ledger ls --since 2025-01-01     # List recent transfers`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput := false
		if cfg, err := config.Load(); err == nil {
			jsonOutput = cfg.Log.JSON
			if verbosity == 0 {
				verbosity = cfg.Log.Verbosity
			}
		}
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.ClassifyCmd)
	rootCmd.AddCommand(commands.SnapshotCmd)
	rootCmd.AddCommand(commands.LedgerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
