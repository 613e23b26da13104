package kgembed

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soundprediction/kgembed/pkg/checkpoint"
	"github.com/soundprediction/kgembed/pkg/types"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict likely tails for a head and relation",
	Long: `Load a checkpoint and rank every entity as a tail for (head, relation).

Unknown heads or relations print nothing. With --named, display names are
looked up in the corpus and entities without a name are skipped.`,
	Example: `  kgembed predict --head 42 --relation TREATS --top-k 5
  kgembed predict --head 42 --relation TREATS --checkpoint epoch_3 --named`,
	RunE: runPredict,
}

var (
	predictHead       string
	predictRelation   string
	predictTopK       int
	predictCheckpoint string
	predictNamed      bool
	predictJSON       bool
)

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictHead, "head", "", "head entity id")
	predictCmd.Flags().StringVar(&predictRelation, "relation", "", "relation id")
	predictCmd.Flags().IntVar(&predictTopK, "top-k", 10, "number of candidates")
	predictCmd.Flags().StringVar(&predictCheckpoint, "checkpoint", checkpoint.FinalName, "checkpoint name or \"latest\"")
	predictCmd.Flags().BoolVar(&predictNamed, "named", false, "resolve entity names from the corpus")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print JSON")
	_ = predictCmd.MarkFlagRequired("head")
	_ = predictCmd.MarkFlagRequired("relation")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()
	ctx := cmd.Context()

	client, err := openClient(ctx, cfg, log, clientOptions{withCorpus: predictNamed})
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := loadNamedCheckpoint(ctx, client, predictCheckpoint); err != nil {
		return err
	}

	head, relation := types.EntityID(predictHead), types.RelationID(predictRelation)
	var preds []types.Prediction
	if predictNamed {
		preds, err = client.PredictTailNamed(ctx, head, relation, predictTopK)
	} else {
		preds, err = client.PredictTail(ctx, head, relation, predictTopK)
	}
	if err != nil {
		return err
	}

	if predictJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tENTITY\tNAME\tDISTANCE")
	for i, p := range preds {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.6f\n", i+1, p.EntityID, p.Name, p.Distance)
	}
	return w.Flush()
}
