package kgembed

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/kgembed/pkg/checkpoint"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export embeddings to a Parquet file",
	Long: `Write every entity and relation vector of a checkpoint to
<out>/<name>.parquet with columns kind, id, name and vector, ready to load
into a vector database.`,
	RunE: runExport,
}

var (
	exportCheckpoint string
	exportOut        string
	exportName       string
	exportNames      bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportCheckpoint, "checkpoint", checkpoint.FinalName, "checkpoint name or \"latest\"")
	exportCmd.Flags().StringVar(&exportOut, "out", ".", "output directory")
	exportCmd.Flags().StringVar(&exportName, "name", "embeddings", "output file name without extension")
	exportCmd.Flags().BoolVar(&exportNames, "names", false, "include entity names from the corpus")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()
	ctx := cmd.Context()

	client, err := openClient(ctx, cfg, log, clientOptions{withCorpus: exportNames})
	if err != nil {
		return err
	}
	defer client.Close()

	name, err := loadNamedCheckpoint(ctx, client, exportCheckpoint)
	if err != nil {
		return err
	}
	path, err := client.Export(ctx, exportOut, exportName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", name, path)
	return nil
}
