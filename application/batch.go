package application

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
)

// BatchItem is one input of a batch.
type BatchItem struct {
	Input    string
	MaxSteps int
}

// BatchResult is the outcome of one batch item. Trial is nil when the
// item failed before exploration finished.
type BatchResult struct {
	Index int
	Input string
	Trial *trial.Trial
	Err   error
}

// BatchStats counts what a batch did.
type BatchStats struct {
	Started       int64
	Completed     int64
	Failed        int64
	TotalDuration time.Duration
}

// AverageDuration returns the mean duration of completed items.
func (s BatchStats) AverageDuration() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Completed)
}

type batchConfig struct {
	concurrency int
	itemTimeout time.Duration
	onResult    func(BatchResult)
}

// BatchOption configures RunBatch.
type BatchOption func(*batchConfig)

// WithConcurrency sets the number of trials run at once.
func WithConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithItemTimeout bounds each trial.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		c.itemTimeout = d
	}
}

// WithResultCallback is called once per finished item, never concurrently.
func WithResultCallback(fn func(BatchResult)) BatchOption {
	return func(c *batchConfig) {
		c.onResult = fn
	}
}

// RunBatch runs every item on a pool of workers. Results are returned in
// item order. Items not started before ctx is done carry ctx.Err().
func (r *Runner) RunBatch(ctx context.Context, items []BatchItem, opts ...BatchOption) ([]BatchResult, BatchStats) {
	cfg := batchConfig{concurrency: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]BatchResult, len(items))
	var (
		mu    sync.Mutex
		stats BatchStats
		wg    sync.WaitGroup
	)

	jobs := make(chan int)
	for range min(cfg.concurrency, len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				res := r.runItem(ctx, cfg, i, items[i])
				results[i] = res

				mu.Lock()
				if res.Trial == nil {
					stats.Failed++
				} else {
					stats.Completed++
					stats.TotalDuration += time.Since(start)
				}
				if cfg.onResult != nil {
					cfg.onResult(res)
				}
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
feed:
	for dispatched < len(items) {
		select {
		case jobs <- dispatched:
			mu.Lock()
			stats.Started++
			mu.Unlock()
			dispatched++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := dispatched; i < len(items); i++ {
		results[i] = BatchResult{Index: i, Input: items[i].Input, Err: ctx.Err()}
		stats.Failed++
	}

	logging.Info().
		Add(logging.Machine(r.Machine().Name)).
		Add(logging.Operation("batch")).
		Add(logging.Int("completed", int(stats.Completed))).
		Add(logging.Int("failed", int(stats.Failed))).
		Msg("batch finished")

	return results, stats
}

func (r *Runner) runItem(ctx context.Context, cfg batchConfig, i int, item BatchItem) BatchResult {
	if cfg.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.itemTimeout)
		defer cancel()
	}

	tr, err := r.Run(ctx, item.Input, item.MaxSteps)
	return BatchResult{Index: i, Input: item.Input, Trial: tr, Err: err}
}
