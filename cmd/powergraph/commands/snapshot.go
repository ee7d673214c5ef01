package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// SnapshotCmd represents the snapshot command
var SnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take and list network snapshots",
	Long: `Materialize point-in-time views of the influence graph.

A snapshot is taken only when the legislative state differs from the most
recent snapshot's state; repeating the same state is a no-op.

Examples:
  powergraph snapshot take committee_markup
  powergraph snapshot ls --limit 10`,
}

var snapshotTakeCmd = &cobra.Command{
	Use:   "take <legislative-state>",
	Short: "Take a snapshot if the legislative state changed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotTake,
}

var snapshotLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List snapshots, newest first",
	RunE:  runSnapshotLs,
}

func init() {
	SnapshotCmd.AddCommand(snapshotTakeCmd)
	SnapshotCmd.AddCommand(snapshotLsCmd)
	snapshotLsCmd.Flags().Int("limit", 20, "Number of snapshots to show")
}

func runSnapshotTake(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.snapshotter().MaybeSnapshot(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if id == "" {
		pterm.Info.Printf("Legislative state %q unchanged; no snapshot taken\n", args[0])
		return nil
	}

	pterm.Success.Printf("Snapshot %s taken at state %q\n", id, args[0])
	return nil
}

func runSnapshotLs(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	snaps, err := a.snapshots.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		pterm.Info.Println("No snapshots")
		return nil
	}

	rows := pterm.TableData{{"ID", "Snapshot At", "State", "Entities", "Edges", "Classifications"}}
	for _, s := range snaps {
		rows = append(rows, []string{
			s.ID,
			s.SnapshotAt.Format("2006-01-02 15:04:05"),
			s.LegislativeState,
			pterm.Sprintf("%d", len(s.Entities)),
			pterm.Sprintf("%d", len(s.Edges)),
			pterm.Sprintf("%d", len(s.Classifications)),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
