package commands

import (
	"fmt"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/fsm"
	"github.com/fly-io/update-agent/pkg/integrity"
	"github.com/fly-io/update-agent/pkg/security"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <artifact>",
	Short: "Fetch an artifact and run the integrity check without applying it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := newSource(cmd.Context(), cfg, security.NewValidator(cfg.MaxArtifactSize))
	if err != nil {
		return err
	}

	data, err := source.Fetch(cmd.Context(), args[0])
	if err != nil {
		return errors.Wrap(err, "fetch failed")
	}

	if !integrity.NewSum8().Verify(data) {
		fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s (%d bytes)\n", args[0], len(data))
		return fsm.ErrVerification
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%d bytes)\n", args[0], len(data))
	return nil
}
