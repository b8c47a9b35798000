package taskweave

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one question in a batch.
type BatchResult struct {
	Question string
	Response *Response
	Err      error
}

// BatchOption configures RunBatch.
type BatchOption func(*batchConfig)

type batchConfig struct {
	workers int
	opts    []Option
}

// WithWorkers bounds how many runs execute at once.
func WithWorkers(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithOrchestratorOptions passes opts to every orchestrator in the batch.
func WithOrchestratorOptions(opts ...Option) BatchOption {
	return func(c *batchConfig) { c.opts = append(c.opts, opts...) }
}

// RunBatch answers every question with its own orchestrator and store.
// A construction error aborts the batch; a failed run only marks its own
// result. Results are in question order.
func RunBatch(ctx context.Context, doc Document, questions []string, opts ...BatchOption) ([]BatchResult, error) {
	cfg := batchConfig{workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(&cfg)
	}

	orchestrators := make([]*Orchestrator, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i := range questions {
		g.Go(func() error {
			runOpts := append(append([]Option(nil), cfg.opts...), WithStore(NewResultStore()))
			o, err := New(gctx, doc, runOpts...)
			if err != nil {
				return err
			}
			orchestrators[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(questions))
	p := pool.New().WithMaxGoroutines(cfg.workers)
	for i, q := range questions {
		p.Go(func() {
			resp, err := orchestrators[i].Invoke(ctx, Request{Question: q})
			results[i] = BatchResult{Question: q, Response: resp, Err: err}
		})
	}
	p.Wait()
	return results, nil
}
