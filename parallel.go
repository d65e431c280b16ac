package hnf

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// useParallel reports whether n ids go through the worker pool.
func (o *options) useParallel(n int) bool {
	switch o.parallel {
	case ParallelOn:
		return true
	case ParallelOff:
		return false
	}
	return n > o.threshold
}

type outcome struct {
	neurons []Neuron
	err     error
	done    bool
}

// readParallel reads every id on its own handle. Results are slotted by
// input index, so the merged order matches ids regardless of which worker
// finishes first.
func (r *Reader) readParallel(ctx context.Context, ids []string) (*Result, error) {
	start := time.Now()
	out := make([]outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.workers)

	for i, id := range ids {
		// Stop handing out ids once a worker failed under ErrorModeStop
		// or the caller cancelled. In-flight reads are drained by Wait.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			neurons, err := readIsolated(r.path, id, r.opts)
			out[i] = outcome{neurons: neurons, err: err, done: true}
			if err != nil && r.opts.onError == ErrorModeStop {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.err != nil {
			failed++
		}
	}
	r.opts.metrics.RecordDispatch(len(ids), failed, r.opts.workers, time.Since(start))

	res := &Result{Errors: make(map[string]error)}
	for i, o := range out {
		if o.err != nil {
			if err := r.handleFailure(ctx, res, ids[i], o.err); err != nil {
				return nil, err
			}
			continue
		}
		if !o.done {
			// Only reachable when dispatch stopped early.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		res.Neurons = append(res.Neurons, o.neurons...)
	}
	return res, nil
}

// readIsolated runs one open-read-close cycle for a single id.
func readIsolated(path, id string, o *options) ([]Neuron, error) {
	r, err := openReader(path, o)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.ReadNeuron(id)
}
