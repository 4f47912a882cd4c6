package stage

import (
	"context"
	"io"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/bulkexport"
)

// Deps carries the collaborators shared by all stages.
type Deps struct {
	Logger *zap.SugaredLogger
	HTTP   *resty.Client
	Stdout io.Writer
	// Sleep replaces the export poll wait; nil waits for real.
	Sleep bulkexport.SleepFunc
}

func (d Deps) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return d.Logger
}

// Runner executes a stage.
type Runner func(ctx context.Context, in Envelope, deps Deps) (Envelope, error)

var registry = map[string]Runner{}

// Register adds a stage runner.
func Register(name string, r Runner) {
	registry[name] = r
}

// Run executes a registered stage by name.
func Run(ctx context.Context, name string, in Envelope, deps Deps) (Envelope, error) {
	r, ok := registry[name]
	if !ok {
		return Envelope{}, ErrUnknown{name: name}
	}
	return r(ctx, in, deps)
}

// RunAll executes stages in order, stopping at the first error.
func RunAll(ctx context.Context, in Envelope, deps Deps, stages ...string) (Envelope, error) {
	out := in
	var err error
	for _, name := range stages {
		if out.Meta != nil {
			out.Meta.Stage = name
		}
		out, err = Run(ctx, name, out, deps)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ErrUnknown is returned when a stage is not found.
type ErrUnknown struct{ name string }

func (e ErrUnknown) Error() string { return "unknown stage: " + e.name }
