package kgembed

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soundprediction/kgembed/pkg/checkpoint"
	"github.com/soundprediction/kgembed/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate [head,relation,tail ...]",
	Short: "Score sample triplets under a checkpoint",
	Long: `Print ||h + r - t|| for each triplet. Smaller distances mean the model
considers the fact more plausible. Triplets with an id the model has never
seen are reported as missing.`,
	Example: `  kgembed validate 1,TREATS,10 2,TREATS,11 --checkpoint final`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runValidate,
}

var (
	validateCheckpoint string
	validateJSON       bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateCheckpoint, "checkpoint", checkpoint.FinalName, "checkpoint name or \"latest\"")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	triplets := make([]types.Triplet, 0, len(args))
	for _, arg := range args {
		t, err := types.ParseTriplet(arg)
		if err != nil {
			return err
		}
		triplets = append(triplets, t)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()
	ctx := cmd.Context()

	client, err := openClient(ctx, cfg, log, clientOptions{})
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := loadNamedCheckpoint(ctx, client, validateCheckpoint); err != nil {
		return err
	}

	results, err := client.Validate(ctx, triplets)
	if err != nil {
		return err
	}

	if validateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HEAD\tRELATION\tTAIL\tDISTANCE")
	for _, r := range results {
		dist := fmt.Sprintf("%.6f", r.Distance)
		if r.Missing {
			dist = "missing"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Triplet.Head, r.Triplet.Relation, r.Triplet.Tail, dist)
	}
	return w.Flush()
}
