// Package writeback sends shifted resources back to the FHIR store.
package writeback

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flarebyte/timewarp/internal/document"
	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/resource"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

// Outcome is what happened to one record.
type Outcome int

const (
	Unchanged Outcome = iota
	Sent
	DryRun
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Sent:
		return "sent"
	case DryRun:
		return "dry-run"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Driver.
type Options struct {
	// DryRun logs what would be sent without calling the store.
	DryRun bool
	// RateLimit caps PUTs per second; zero or less means unlimited.
	RateLimit float64
	Logger    *zap.SugaredLogger
}

// Driver replaces resources at {base}{type}/{id}. It is safe for concurrent
// use; the limiter is shared by all callers.
type Driver struct {
	http    *resty.Client
	base    string
	dryRun  bool
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// New returns a Driver for the store at baseURL.
func New(hc *resty.Client, baseURL string, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Driver{
		http:    hc,
		base:    strings.TrimRight(baseURL, "/") + "/",
		dryRun:  opts.DryRun,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Location is the canonical URL of a resource.
func (d *Driver) Location(typ, id string) string {
	return d.base + url.PathEscape(typ) + "/" + url.PathEscape(id)
}

// Submit sends rec when changed is true. Unchanged records never reach the
// store. A returned error always has kind WriteBackFailure and does not
// prevent later submissions.
func (d *Driver) Submit(ctx context.Context, rec *resource.Resource, changed bool) (Outcome, error) {
	if !changed {
		return Unchanged, nil
	}
	id, ok := rec.ID()
	if !ok {
		return Failed, failure.New(failure.WriteBackFailure, "put", fmt.Errorf("%s record has no id", rec.Type))
	}
	target := d.Location(rec.Type, id)
	if d.dryRun {
		d.logger.Infof("dry-run: would PUT %s", target)
		return DryRun, nil
	}
	body, err := document.Encode(rec.Data)
	if err != nil {
		return Failed, failure.WithPath(failure.WriteBackFailure, "put", target, err)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return Failed, failure.WithPath(failure.WriteBackFailure, "put", target, err)
	}
	callCtx, cancel := storeclient.CallContext(ctx)
	defer cancel()
	res, err := d.http.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/fhir+json").
		SetHeader("Accept", "application/fhir+json").
		SetBody(body).
		Put(target)
	if err != nil {
		return Failed, failure.WithPath(failure.WriteBackFailure, "put", target, err)
	}
	if !res.IsSuccess() {
		return Failed, failure.WithPath(failure.WriteBackFailure, "put", target,
			fmt.Errorf("status %d: %s", res.StatusCode(), storeclient.Excerpt(res.Body())))
	}
	d.logger.Debugf("updated %s/%s", rec.Type, id)
	return Sent, nil
}
