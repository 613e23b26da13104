package kgembed

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage saved checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointList,
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete NAME...",
	Short: "Delete checkpoints",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckpointDelete,
}

var checkpointCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete checkpoints older than --max-age",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointClean,
}

var checkpointMaxAge time.Duration

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointListCmd, checkpointDeleteCmd, checkpointCleanCmd)

	checkpointCleanCmd.Flags().DurationVar(&checkpointMaxAge, "max-age", 7*24*time.Hour, "remove checkpoints written before now minus max-age")
}

func runCheckpointList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()

	mgr, err := openCheckpoints(cfg, log)
	if err != nil {
		return err
	}
	defer mgr.Close()

	infos, err := mgr.List(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEPOCH\tENTITIES\tRELATIONS\tDIM\tRUN\tCREATED")
	for _, info := range infos {
		epoch := fmt.Sprint(info.Epoch)
		if info.Partial {
			epoch += " (partial)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			info.Name, epoch, info.NumEntities, info.NumRelations,
			info.Config.EmbeddingDim, info.RunID, info.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runCheckpointDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()

	mgr, err := openCheckpoints(cfg, log)
	if err != nil {
		return err
	}
	defer mgr.Close()

	for _, name := range args {
		if err := mgr.Delete(cmd.Context(), name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
	}
	return nil
}

func runCheckpointClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, flushLog := newLogger(cfg)
	defer flushLog()

	mgr, err := openCheckpoints(cfg, log)
	if err != nil {
		return err
	}
	defer mgr.Close()

	removed, err := mgr.CleanOld(cmd.Context(), checkpointMaxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoint(s) older than %s\n", removed, checkpointMaxAge)
	return nil
}
