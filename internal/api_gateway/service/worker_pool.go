package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// WorkerPool runs statement decoding and LLM calls on a bounded set of goroutines
type WorkerPool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

func NewWorkerPool(size int, logger *slog.Logger) (*WorkerPool, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &WorkerPool{pool: pool, logger: logger}, nil
}

// Run submits task and waits for it. When ctx ends first, Run returns ctx.Err()
// and the task finishes in the background.
func (p *WorkerPool) Run(ctx context.Context, task func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Buffered so an abandoned task never blocks its worker.
	resultChan := make(chan error, 1)

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- fmt.Errorf("worker task panicked: %v", r)
			}
		}()
		resultChan <- task()
	})
	if err != nil {
		p.logger.Error("Failed to submit task to worker pool", "running_workers", p.pool.Running(), "error", err)
		return fmt.Errorf("failed to submit task to worker pool: %w", err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *WorkerPool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *WorkerPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *WorkerPool) Capacity() int {
	return p.pool.Cap()
}
