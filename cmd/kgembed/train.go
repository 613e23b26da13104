package kgembed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/kgembed/pkg/alert"
	"github.com/soundprediction/kgembed/pkg/transe"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train embeddings over the configured corpus",
	Long: `Train TransE embeddings over the configured corpus.

A checkpoint named epoch_<n> is written after every epoch and "final" once all
epochs complete. Interrupting with Ctrl-C saves epoch_<n>_partial and exits.`,
	RunE: runTrain,
}

var (
	trainFromCheckpoint string
	trainProgressEvery  int
)

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Int("epochs", 0, "number of epochs")
	trainCmd.Flags().Int("batch-size", 0, "triplets per batch")
	trainCmd.Flags().Int("dim", 0, "embedding dimension")
	trainCmd.Flags().Float64("margin", 0, "hinge loss margin")
	trainCmd.Flags().Float64("learning-rate", 0, "learning rate")
	trainCmd.Flags().Uint64("seed", 0, "random seed")
	trainCmd.Flags().StringVar(&trainFromCheckpoint, "from-checkpoint", "", "continue from a checkpoint (name or \"latest\") instead of random vectors")
	trainCmd.Flags().IntVar(&trainProgressEvery, "progress-every", 100, "log the running loss every N batches (0 disables)")

	// Telemetry flags
	trainCmd.Flags().String("telemetry-parquet-path", "", "directory for epoch metrics and error logs")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observers, closeTelemetry, err := telemetryObservers(ctx, cfg, log)
	defer func() {
		if err := closeTelemetry(); err != nil {
			log.Warn("Failed to close telemetry", "error", err)
		}
	}()
	if err != nil {
		return err
	}
	if trainProgressEvery > 0 {
		observers = append(observers, transe.ObserverFuncs{
			OnBatch: func(ctx context.Context, r transe.BatchResult) {
				if (r.Batch+1)%trainProgressEvery == 0 {
					log.InfoContext(ctx, "Training progress",
						"epoch", r.Epoch, "batch", r.Batch+1, "running_loss", r.RunningLoss)
				}
			},
		})
	}

	client, err := openClient(ctx, cfg, log, clientOptions{withCorpus: true, observers: observers})
	if err != nil {
		return err
	}
	defer client.Close()

	if trainFromCheckpoint != "" {
		name, err := loadNamedCheckpoint(ctx, client, trainFromCheckpoint)
		if err != nil {
			return fmt.Errorf("failed to load checkpoint %s: %w", trainFromCheckpoint, err)
		}
		// Entities added to the corpus since the checkpoint get fresh vectors.
		if err := client.Initialize(ctx); err != nil {
			return err
		}
		log.Info("Continuing from checkpoint", "name", name)
	} else if err := client.Initialize(ctx); err != nil {
		return err
	}

	results, err := client.Train(ctx)
	printEpochs(cmd, results)
	if errors.Is(err, context.Canceled) {
		log.Warn("Training interrupted", "completed_epochs", len(results))
		return nil
	}
	if err != nil {
		log.Error("Training failed", "run_id", client.Trainer().RunID(), "error", err)
		subject, body := alert.TrainingFailed(client.Trainer().RunID(), len(results), cfg.Training.Epochs, err)
		if alertErr := alert.New(cfg.Alert).Alert(subject, body); alertErr != nil {
			log.Warn("Failed to send alert", "error", alertErr)
		}
	}
	return err
}

func printEpochs(cmd *cobra.Command, results []transe.EpochResult) {
	if len(results) == 0 {
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EPOCH\tAVG LOSS\tTRIPLETS\tUPDATES\tDURATION\tCHECKPOINT")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%.6f\t%d\t%d\t%s\t%s\n",
			r.Epoch, r.AverageLoss, r.Triplets, r.Updates, r.Duration.Round(time.Millisecond), r.Checkpoint)
	}
	_ = w.Flush()
}
