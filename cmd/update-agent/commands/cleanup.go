package commands

import (
	"fmt"

	"github.com/fly-io/update-agent/pkg/apply"
	"github.com/fly-io/update-agent/pkg/db"
	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cleanupHistory bool
	cleanupStaged  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove local agent state (attempt history, staged content)",
	Long: `Remove local state left by previous runs:
  --history   Delete all recorded attempts
  --staged    Delete the content staged by the file apply backend`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupHistory, "history", false, "Delete attempt history")
	cleanupCmd.Flags().BoolVar(&cleanupStaged, "staged", false, "Delete staged apply content")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if !cleanupHistory && !cleanupStaged {
		return fmt.Errorf("must specify --history, --staged, or both")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cleanupHistory {
		if cfg.HistoryPath == "" {
			return fmt.Errorf("history is disabled (history-path is empty)")
		}
		if err := ensureDirectories(cfg.HistoryPath); err != nil {
			return err
		}
		repo, err := db.NewRepository(cfg.HistoryPath)
		if err != nil {
			return errors.Wrap(err, "db init failed")
		}
		defer repo.Close()

		n, err := repo.DeleteAll()
		if err != nil {
			return errors.Wrap(err, "failed to delete history")
		}
		fmt.Fprintf(out, "Removed %d attempts from %s\n", n, cfg.HistoryPath)
	}

	if cleanupStaged {
		if err := (apply.FileBackend{Target: cfg.ApplyTarget}).Remove(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed staged content %s\n", cfg.ApplyTarget)
	}

	return nil
}
