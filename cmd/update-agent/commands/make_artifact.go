package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/integrity"
	"github.com/spf13/cobra"
)

var (
	makeSize    int
	makeCorrupt bool
)

var makeArtifactCmd = &cobra.Command{
	Use:   "make-artifact <path> [byte...]",
	Short: "Write a test artifact sealed with its checksum byte",
	Long: `Writes the given payload bytes (0-255) followed by their sum-8 checksum.
  make-artifact update_artifact_good.bin 10 20 30
  make-artifact update_artifact_bad.bin 10 20 30 --corrupt
  make-artifact big.bin --size 4096`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMakeArtifact,
}

func init() {
	rootCmd.AddCommand(makeArtifactCmd)
	makeArtifactCmd.Flags().IntVar(&makeSize, "size", 0, "Generate a payload of this many bytes instead of listing them")
	makeArtifactCmd.Flags().BoolVar(&makeCorrupt, "corrupt", false, "Write a wrong checksum byte")
}

func runMakeArtifact(cmd *cobra.Command, args []string) error {
	data, err := buildArtifact(args[1:], makeSize, makeCorrupt)
	if err != nil {
		return err
	}

	path := args[0]
	if err := ensureDirectories(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write artifact")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, checksum %d)\n", path, len(data), data[len(data)-1])
	return nil
}

// buildArtifact seals either the listed byte values or a generated payload
// of size bytes.
func buildArtifact(values []string, size int, corrupt bool) ([]byte, error) {
	if len(values) > 0 && size > 0 {
		return nil, fmt.Errorf("use either explicit bytes or --size, not both")
	}
	if size < 0 {
		return nil, fmt.Errorf("--size must be positive")
	}

	var payload []byte
	switch {
	case size > 0:
		payload = make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
	case len(values) > 0:
		payload = make([]byte, 0, len(values))
		for _, v := range values {
			b, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid byte value %q: must be 0-255", v)
			}
			payload = append(payload, byte(b))
		}
	default:
		return nil, fmt.Errorf("no payload: pass byte values or --size")
	}

	data := integrity.Seal(payload)
	if corrupt {
		data[len(data)-1]++
	}
	return data, nil
}
