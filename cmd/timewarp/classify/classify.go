package classify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/records"
)

// NewCmd returns `timewarp classify`.
func NewCmd() *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:           "classify <FILE>...",
		Short:         "Report whether each file holds one JSON document or NDJSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return failure.New(failure.Usage, "classify", fmt.Errorf("at least one FILE is required"))
			}
			stdout := cmd.OutOrStdout()
			var firstErr error
			failed := 0
			for _, p := range args {
				label, err := describe(p, count)
				if err != nil {
					failed++
					if firstErr == nil {
						firstErr = err
					}
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", failure.Sanitize(err.Error()))
					continue
				}
				if len(args) == 1 {
					_, err = fmt.Fprintln(stdout, label)
				} else {
					_, err = fmt.Fprintf(stdout, "%s\t%s\n", label, p)
				}
				if err != nil {
					return err
				}
			}
			if failed > 1 {
				return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
			}
			return firstErr
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "Also parse every record and print the record count")
	return cmd
}

// describe returns the format of path, followed by its record count when
// count is set.
func describe(path string, count bool) (string, error) {
	format, err := records.Classify(path)
	if err != nil || !count {
		return format.String(), err
	}
	n := 0
	if err := records.Each(path, func(any, int) error {
		n++
		return nil
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\t%d", format, n), nil
}
