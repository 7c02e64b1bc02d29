package workflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs every request with at most concurrency runs in flight and
// returns one Result per request, in request order. A request reusing the
// name of an earlier one is aborted without contacting the provider.
//
// The returned error joins the errors of all failed runs; it is nil only
// when every run succeeded.
func (r *Runner) RunBatch(ctx context.Context, reqs []Request, concurrency int) ([]*Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(concurrency)

	seen := make(map[string]bool, len(reqs))
	for i, req := range reqs {
		if seen[req.Name] {
			results[i] = r.abort(req, fmt.Errorf("%w: duplicate name %q in batch", ErrInvalidRequest, req.Name))
			continue
		}
		seen[req.Name] = true

		g.Go(func() error {
			// Failures are carried by the Result; the group never cancels
			// sibling runs.
			results[i], _ = r.Run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Request.Name, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// abort returns the Result of a request rejected before it started.
func (r *Runner) abort(req Request, err error) *Result {
	m := NewMachine(r.now)
	_ = m.To(StateAborted)
	res := &Result{
		RunID:       r.newID(),
		Request:     req,
		State:       m.State(),
		Transitions: m.History(),
		Err:         err,
		StartedAt:   m.History()[0].At,
		FinishedAt:  r.now(),
	}
	r.metrics.RecordWorkflow(string(res.State), res.Duration())
	return res
}
