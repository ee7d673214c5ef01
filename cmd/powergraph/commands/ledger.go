package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/errors"
	"github.com/hillwire/powergraph/graph"
)

// LedgerCmd represents the ledger command
var LedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Record and list power-transfer events",
	Long: `Record and list entries in the append-only log of power transfers.

The ledger records claims of influence moving between entities. Entries are
never rewritten or deleted.

Examples:
  powergraph ledger ls --since 2025-01-01
  powergraph ledger record --from old-counsel --to new-counsel \
      --mechanism staff_succession --memory 0.8`,
}

var ledgerLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List transfers in append order",
	RunE:  runLedgerLs,
}

var ledgerRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append one transfer event",
	RunE:  runLedgerRecord,
}

func init() {
	LedgerCmd.AddCommand(ledgerLsCmd)
	LedgerCmd.AddCommand(ledgerRecordCmd)

	ledgerLsCmd.Flags().String("since", "", "Only transfers at or after this date (YYYY-MM-DD or RFC3339)")
	ledgerLsCmd.Flags().Int64("after-seq", 0, "Resume after this sequence number")

	ledgerRecordCmd.Flags().String("from", "", "Source entity id or natural key")
	ledgerRecordCmd.Flags().String("to", "", "Destination entity id or natural key")
	ledgerRecordCmd.Flags().String("mechanism", "", "Transfer mechanism (e.g. staff_succession, gavel_change)")
	ledgerRecordCmd.Flags().Float64("power", 0, "Procedural power transferred")
	ledgerRecordCmd.Flags().Float64("memory", 0, "Institutional memory transferred")
	ledgerRecordCmd.Flags().String("state", "", "Legislative state at time of transfer")
}

func runLedgerLs(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sinceFlag, _ := cmd.Flags().GetString("since")
	afterSeq, _ := cmd.Flags().GetInt64("after-seq")

	since := time.Time{}
	if sinceFlag != "" {
		since, err = parseSince(sinceFlag)
		if err != nil {
			return err
		}
	}

	iter, err := a.ledger.Since(cmd.Context(), since, afterSeq)
	if err != nil {
		return err
	}
	defer iter.Close()

	rows := pterm.TableData{{"Seq", "Transferred At", "From", "To", "Mechanism", "Power", "Memory"}}
	n := 0
	for iter.Next() {
		ev := iter.Event()
		rows = append(rows, []string{
			pterm.Sprintf("%d", ev.Seq),
			ev.TransferredAt.Format("2006-01-02 15:04:05"),
			ev.FromEntityID,
			ev.ToEntityID,
			ev.Mechanism,
			pterm.Sprintf("%.2f", ev.Weights.ProceduralPower),
			pterm.Sprintf("%.2f", ev.Weights.InstitutionalMemory),
		})
		n++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if n == 0 {
		pterm.Info.Println("No transfers")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runLedgerRecord(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	mechanism, _ := cmd.Flags().GetString("mechanism")
	power, _ := cmd.Flags().GetFloat64("power")
	memory, _ := cmd.Flags().GetFloat64("memory")
	state, _ := cmd.Flags().GetString("state")

	// Natural keys resolve to entity ids when known; unknown references are
	// recorded verbatim, the ledger records claims
	if e, err := a.entities.GetByNaturalKey(ctx, from); err == nil {
		from = e.ID
	}
	if e, err := a.entities.GetByNaturalKey(ctx, to); err == nil {
		to = e.ID
	}

	ev := &graph.TransferEvent{
		FromEntityID:     from,
		ToEntityID:       to,
		Mechanism:        mechanism,
		Weights:          graph.WeightVector{ProceduralPower: power, InstitutionalMemory: memory},
		LegislativeState: state,
	}
	id, err := a.ledger.Record(ctx, ev)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Transfer %s recorded (seq %d)\n", id, ev.Seq)
	return nil
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.Newf("could not parse --since %q: use YYYY-MM-DD or RFC3339", s)
}
