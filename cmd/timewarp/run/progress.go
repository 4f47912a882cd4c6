package run

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/stage"
)

const defaultProgressInterval = 30 * time.Second

// progressReporter logs each stage as it starts and ends, and a heartbeat
// while a slow stage such as the export poll is still running.
type progressReporter struct {
	enabled  bool
	interval time.Duration
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	stageName string
	started   time.Time
	processed int
	errors    int
}

func newProgressReporter(logger *zap.SugaredLogger, interval time.Duration) *progressReporter {
	if logger == nil {
		return &progressReporter{enabled: false}
	}
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	return &progressReporter{enabled: true, interval: interval, logger: logger}
}

func (p *progressReporter) runStage(ctx context.Context, name string, in stage.Envelope, deps stage.Deps) (stage.Envelope, error) {
	if p == nil || !p.enabled {
		return stage.Run(ctx, name, in, deps)
	}

	p.setSnapshot(name, len(in.Records), len(in.Errors))
	p.logger.Debugf("stage %s: start", name)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				p.heartbeat()
			case <-done:
				return
			}
		}
	}()

	out, err := stage.Run(ctx, name, in, deps)
	close(done)
	if err == nil {
		p.setSnapshot(name, len(out.Records), len(out.Errors))
		p.finish()
	}
	return out, err
}

func (p *progressReporter) setSnapshot(stageName string, processed int, errs int) {
	p.mu.Lock()
	if p.stageName != stageName {
		p.started = time.Now()
	}
	p.stageName = stageName
	p.processed = processed
	p.errors = errs
	p.mu.Unlock()
}

func (p *progressReporter) heartbeat() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Infof("stage %s still running after %s", p.stageName, time.Since(p.started).Round(time.Second))
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Debugf("stage %s: done in %s, files=%d errors=%d",
		p.stageName, time.Since(p.started).Round(time.Millisecond), p.processed, p.errors)
}
