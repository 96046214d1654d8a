package commands

import (
	"fmt"

	"github.com/fly-io/update-agent/pkg/db"
	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent update attempts and their outcome",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of attempts to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.HistoryPath == "" {
		return fmt.Errorf("history is disabled (history-path is empty)")
	}

	// Ensure database directory exists
	if err := ensureDirectories(cfg.HistoryPath); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.HistoryPath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	attempts, err := repo.List(historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	out := cmd.OutOrStdout()
	if len(attempts) == 0 {
		fmt.Fprintln(out, "No attempts recorded")
		return nil
	}

	fmt.Fprintf(out, "%-36s %-28s %-11s %-10s %-20s %s\n", "ID", "ARTIFACT", "STATUS", "SIZE", "UPDATED", "ERROR")
	fmt.Fprintln(out, "------------------------------------------------------------------------------------------------------------------")

	for _, a := range attempts {
		size := "-"
		if a.SizeBytes > 0 {
			size = fmt.Sprintf("%d", a.SizeBytes)
		}
		msg := a.ErrorMessage
		if msg == "" {
			msg = "-"
		}

		fmt.Fprintf(out, "%-36s %-28s %-11s %-10s %-20s %s\n",
			a.ID, a.Artifact, a.Status, size, a.UpdatedAt, msg)
	}

	return nil
}
