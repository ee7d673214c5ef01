package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hillwire/powergraph/graph"
)

// ClassifyCmd represents the classify command
var ClassifyCmd = &cobra.Command{
	Use:   "classify <natural-key>",
	Short: "Derive a control classification for an entity",
	Long: `Derive and persist a control classification for one entity.

Reads the entity's active outgoing edges, derives PRIMARY, SECONDARY, or
SHADOW control, persists the result (superseding any current classification
for the same context), and prints the evidence.

Examples:
  powergraph classify dana-whitfield
  powergraph classify dana-whitfield --state committee_markup --bill S.1042`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	ClassifyCmd.Flags().String("state", "", "Legislative state context")
	ClassifyCmd.Flags().String("bill", "", "Bill id context")
	ClassifyCmd.Flags().String("policy-area", "", "Policy area context")
	ClassifyCmd.Flags().String("committee", "", "Committee id context")
	ClassifyCmd.Flags().Bool("dry-run", false, "Derive without persisting")
}

func runClassify(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	state, _ := cmd.Flags().GetString("state")
	bill, _ := cmd.Flags().GetString("bill")
	policyArea, _ := cmd.Flags().GetString("policy-area")
	committee, _ := cmd.Flags().GetString("committee")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	entity, err := a.entities.GetByNaturalKey(ctx, args[0])
	if err != nil {
		return err
	}

	edges, err := a.edges.ActiveEdgesFrom(ctx, entity.ID, state)
	if err != nil {
		return err
	}

	cctx := graph.ClassificationContext{
		BillID:           bill,
		PolicyArea:       policyArea,
		LegislativeState: state,
		CommitteeID:      committee,
	}

	c := a.classifier.Classify(entity.ID, edges, cctx)
	if c == nil {
		pterm.Info.Printf("%s has no active outbound edges; no classification asserted\n", entity.Name)
		return nil
	}

	if !dryRun {
		if err := a.classifications.Insert(ctx, c); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Printf("%s → %s", entity.Name, c.ControlType)
	for _, ev := range c.Evidence {
		pterm.Printf("  • %s\n", ev)
	}
	if c.OverridesClassificationID != "" {
		pterm.Printf("  supersedes %s\n", c.OverridesClassificationID)
	}
	if dryRun {
		pterm.Warning.Println("dry run: classification not persisted")
	}
	return nil
}
