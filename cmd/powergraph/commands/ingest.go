package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/ingest"
	"github.com/hillwire/powergraph/logger"
)

// IngestCmd represents the ingest command
var IngestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Process observation batches from upstream agents",
	Long: `Apply observation batch files to the graph.

Batch files are JSON documents with entities, assignments, edge events, and
transfers, delivered by upstream roster and directory agents. Malformed
records are rejected individually; the rest of the batch still applies.

Examples:
  powergraph ingest inbox/roster.json    # Process one file
  powergraph ingest --watch              # Watch the configured inbox directory`,
	RunE: runIngest,
}

func init() {
	IngestCmd.Flags().Bool("watch", false, "Watch the inbox directory for new batch files")
}

func runIngest(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	if !watch && len(args) == 0 {
		return errors.New("provide at least one batch file, or --watch")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	processor := ingest.NewProcessor(a.entities, a.edges, a.ledger, a.evolver, logger.Logger).
		WithSnapshots(a.snapshotter())
	ctx := cmd.Context()

	for _, path := range args {
		result, err := processor.ProcessFile(ctx, path)
		if err != nil {
			return err
		}
		printResult(path, result)
	}

	if !watch {
		return nil
	}

	debounce := time.Duration(a.cfg.Ingest.DebounceMS) * time.Millisecond
	watcher, err := ingest.NewWatcher(a.cfg.Ingest.InboxDir, processor, debounce, logger.Logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	pterm.Info.Printf("Watching %s for observation batches\n", a.cfg.Ingest.InboxDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sig:
	}
	return nil
}

func printResult(path string, r *ingest.Result) {
	pterm.Success.Printf("Processed %s (source: %s)\n", path, r.Source)
	pterm.Printf("  entities: %d  assignments: %d  edge events: %d  transfers: %d\n",
		r.EntitiesUpserted, r.AssignmentsApplied, r.EdgeEventsApplied, r.TransfersRecorded)
	if r.SnapshotID != "" {
		pterm.Printf("  snapshot: %s\n", r.SnapshotID)
	}

	for _, rej := range r.Rejected {
		pterm.Warning.Printf("  rejected %s[%d]: %s\n", rej.Kind, rej.Index, rej.Reason)
	}
}
