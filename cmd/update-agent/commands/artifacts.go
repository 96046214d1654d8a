package commands

import (
	"fmt"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/security"
	"github.com/fly-io/update-agent/pkg/storage"
	"github.com/spf13/cobra"
)

var artifactsPrefix string

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List artifacts available in the S3 bucket",
	RunE:  runArtifacts,
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
	artifactsCmd.Flags().StringVar(&artifactsPrefix, "prefix", "", "Only list keys with this prefix")
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.S3Bucket == "" {
		return fmt.Errorf("s3-bucket is required to list artifacts")
	}

	client, err := storage.NewClient(cmd.Context(), cfg.S3Bucket, cfg.S3Region, security.NewValidator(cfg.MaxArtifactSize))
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	keys, err := client.ListObjects(cmd.Context(), artifactsPrefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintln(out, "No artifacts found")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}
