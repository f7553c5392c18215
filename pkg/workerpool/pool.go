// Package workerpool runs blocking connector calls with bounded parallelism.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent items (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool bounds how many work items run at once. It holds no goroutines of its own;
// each Process call starts and drains its own.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string // For logging/tracking, e.g. the table name
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items with bounded parallelism and returns results in
// completion order. A failing or panicking item does not stop the others.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], 0, len(items))
	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item Item[T]) {
			defer wg.Done()

			// Acquire semaphore slot (blocks if at max concurrency)
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- Result[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			resultsChan <- runItem(ctx, pool.logger, item)
		}(item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}

func runItem[T any](ctx context.Context, logger *zap.Logger, item Item[T]) (res Result[T]) {
	res.ID = item.ID
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Work item panicked", zap.String("id", item.ID), zap.Any("panic", r))
			res.Err = fmt.Errorf("work item %s panicked: %v", item.ID, r)
		}
	}()

	res.Result, res.Err = item.Execute(ctx)
	return res
}
