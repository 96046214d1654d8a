package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fly-io/update-agent/pkg/agent"
	"github.com/fly-io/update-agent/pkg/console"
	"github.com/fly-io/update-agent/pkg/db"
	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/fsm"
	"github.com/fly-io/update-agent/pkg/integrity"
	"github.com/fly-io/update-agent/pkg/metrics"
	"github.com/fly-io/update-agent/pkg/security"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run [artifact]",
	Short: "Run the update agent, reading commands from stdin",
	Long: `Starts the state machine and reads operator commands from stdin.
The optional argument overrides the configured artifact name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("artifact", "update_artifact_good.bin", "Artifact to fetch on every attempt")
	runCmd.Flags().Duration("confirm-timeout", 60*time.Second, "How long to wait for each operator confirmation")
	runCmd.Flags().Duration("cadence", 2*time.Second, "Pause between state machine iterations")
	runCmd.Flags().String("apply-backend", "delay", "Apply backend (delay, file)")
	runCmd.Flags().Duration("apply-delay", time.Second, "Simulated apply duration")
	runCmd.Flags().String("reboot-command", "", "Command run on reboot (empty logs only)")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (empty disables)")

	for _, name := range []string{
		"artifact", "confirm-timeout", "cadence", "apply-backend",
		"apply-delay", "reboot-command", "metrics-addr",
	} {
		viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Artifact = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validator := security.NewValidator(cfg.MaxArtifactSize)
	source, err := newSource(ctx, cfg, validator)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	opts := fsm.Options{
		Artifact:       cfg.Artifact,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Cadence:        cfg.Cadence,
		Metrics:        metrics.Noop{},
	}

	if cfg.HistoryPath != "" {
		if err := ensureDirectories(cfg.HistoryPath); err != nil {
			return err
		}
		repo, err := db.NewRepository(cfg.HistoryPath)
		if err != nil {
			return errors.Wrap(err, "db init failed")
		}
		defer repo.Close()
		opts.Journal = repo
	}

	var services []agent.Runner
	if cfg.MetricsAddr != "" {
		opts.Metrics = metrics.NewProm("update_agent")
		services = append(services, metrics.NewServer(cfg.MetricsAddr))
	}

	coord := fsm.NewCoordinator(opts.Metrics)
	machine := fsm.NewMachine(coord, source, integrity.NewSum8(), backend, newRebooter(cfg), opts)

	printBanner(cmd.OutOrStdout(), machine.Artifact())
	slog.Info("agent_starting",
		"artifact_source", cfg.ArtifactSource,
		"apply_backend", cfg.ApplyBackend,
		"history_path", cfg.HistoryPath)

	return agent.New(machine, console.NewReader(cmd.InOrStdin(), coord), services...).Run(ctx)
}

func printBanner(w io.Writer, artifact string) {
	fmt.Fprintln(w, "Update agent running, artifact:", artifact)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands accepted on stdin:")
	fmt.Fprintf(w, "  %-15s transition from idle to downloading and fetch the update\n", fsm.TokenStartUpdate)
	fmt.Fprintf(w, "  %-15s transition from downloading to verifying after a successful download\n", fsm.TokenVerify)
	fmt.Fprintf(w, "  %-15s transition from verifying to applying after a successful verification\n", fsm.TokenApply)
	fmt.Fprintf(w, "  %-15s transition from applying to rebooting\n", fsm.TokenReboot)
	fmt.Fprintln(w)
}
