package run

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/config"
	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/logging"
	"github.com/flarebyte/timewarp/internal/stage"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

// NewShiftCmd returns `timewarp shift`.
func NewShiftCmd() *cobra.Command {
	var f shiftFlags
	cmd := &cobra.Command{
		Use:   "shift <FHIR_BASE_URL> [NUM_DAYS] [WORK_DIR]",
		Short: "Export a FHIR store, shift every date by NUM_DAYS and write the records back",
		Long: `Export the store with the bulk $export operation into WORK_DIR (default: the
OS temp directory), move every date and date-time forward by NUM_DAYS
(default 1; use "-- -3" to move back) and PUT each changed record back.

Birth dates and lastUpdated stamps are never shifted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := shiftSettings(cmd.Flags(), &f, args)
			if err != nil {
				if failure.Is(err, failure.Usage) {
					_ = cmd.Usage()
				}
				return evaluateRunExit(err)
			}
			_, err = execute(cmd, s, f.configPath, &f.storeFlags, shiftStages)
			return evaluateRunExit(err)
		},
	}
	f.bind(cmd.Flags())
	return cmd
}

func shiftSettings(fs *pflag.FlagSet, f *shiftFlags, args []string) (*config.Settings, error) {
	if err := checkArgCount(args, 3); err != nil {
		return nil, err
	}
	s, err := resolveSettings(f.configPath, f.envFile, fs, f.apply)
	if err != nil {
		return nil, err
	}
	if err := shiftArgs(args, s); err != nil {
		return nil, err
	}
	return s, nil
}

// execute builds the logger and HTTP client, then runs stages.
func execute(cmd *cobra.Command, s *config.Settings, configPath string, f *storeFlags, stages []string) (stage.Envelope, error) {
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), f.logFile, f.verbose)
	if err != nil {
		return stage.Envelope{}, err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	deps := stage.Deps{
		Logger: logger,
		HTTP: storeclient.New(storeclient.Options{
			AuthToken: s.AuthToken,
			Retries:   s.Retries,
			Logger:    logger,
		}),
		Stdout: cmd.OutOrStdout(),
	}
	in := stage.Envelope{Records: []stage.Record{}, Meta: &stage.Meta{ConfigPath: configPath, Settings: s}}
	return runStages(ctx, in, deps, stages, newProgressReporter(logger, 0))
}

func newLogger(stderr io.Writer, logFile string, verbose bool) (*zap.SugaredLogger, func(), error) {
	if logFile == "" {
		logger := logging.NewLogger(stderr, nil, verbose)
		return logger, func() { _ = logger.Sync() }, nil
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, failure.WithPath(failure.Usage, "log file", logFile, err)
	}
	logger := logging.NewLogger(stderr, file, verbose)
	return logger, func() {
		_ = logger.Sync()
		_ = file.Close()
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
