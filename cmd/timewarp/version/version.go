package version

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/timewarp/internal/buildinfo"
)

// NewCmd returns `timewarp version`.
func NewCmd() *cobra.Command {
	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if short || !asJSON {
				_, err := fmt.Fprintf(stdout, "timewarp %s\n", buildinfo.Summary())
				return err
			}
			// JSON goes to stdout; the human line to stderr.
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "timewarp version: %s\n", buildinfo.Summary())
			return encodeJSON(stdout, map[string]any{
				"version":    buildinfo.Version,
				"commit":     buildinfo.Commit,
				"date":       buildinfo.Date,
				"built_by":   buildinfo.BuiltBy,
				"user_agent": buildinfo.UserAgent(),
				"go":         runtime.Version(),
				"go_os":      runtime.GOOS,
				"go_arch":    runtime.GOARCH,
				"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
			})
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version string")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print detailed JSON version info")
	return cmd
}
