package stage

import (
	"context"

	"github.com/flarebyte/timewarp/internal/storeclient"
)

// probe-store: OPTIONS on the base URL so a wrong address fails before the
// export is started.
func probeStoreRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, err
	}
	if err := storeclient.Probe(ctx, deps.HTTP, s.BaseURL); err != nil {
		return Envelope{}, err
	}
	deps.logger().Debugf("store reachable: %s", s.BaseURL)
	return in, nil
}

func init() { Register("probe-store", probeStoreRunner) }
