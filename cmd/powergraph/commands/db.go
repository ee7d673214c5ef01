package commands

import (
	"database/sql"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/errors"
)

// DbCmd represents the db command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the powergraph database",
	Long: `Manage the local powergraph database.

Examples:
  powergraph db migrate    # Apply pending schema migrations
  powergraph db stats      # Show graph statistics`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	Long:  "Display counts of entities, edges by status, classifications, transfers, and snapshots.",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openApp migrates on open; reaching here means the schema is current
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pterm.Success.Printf("Database migrated: %s\n", a.cfg.Database.Path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	counts := map[string]string{
		"Entities":        "SELECT COUNT(*) FROM entities",
		"Active entities": "SELECT COUNT(*) FROM entities WHERE active = 1",
		"Active edges":    "SELECT COUNT(*) FROM edges WHERE status = 'ACTIVE'",
		"Archived edges":  "SELECT COUNT(*) FROM edges WHERE status = 'ARCHIVED'",
		"Classifications": "SELECT COUNT(*) FROM classifications",
		"Transfers":       "SELECT COUNT(*) FROM transfers",
		"Snapshots":       "SELECT COUNT(*) FROM snapshots",
	}
	order := []string{"Entities", "Active entities", "Active edges", "Archived edges",
		"Classifications", "Transfers", "Snapshots"}

	fmt.Printf("Graph Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:   %s\n", a.cfg.Database.Path)

	for _, label := range order {
		var n int
		err := a.sqlDB.QueryRow(counts[label]).Scan(&n)
		if err != nil && err != sql.ErrNoRows {
			return errors.Wrapf(err, "failed to count %s", label)
		}
		fmt.Printf("%-16s %d\n", label+":", n)
	}
	return nil
}
