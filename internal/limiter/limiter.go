// Package limiter runs independent units of work with a cap on how many
// execute at once, returning results in submission order.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lsst-sqre/lsst-io-analysis/internal/metrics"
)

// DefaultSize is the number of units allowed in flight when no size is configured.
const DefaultSize = 10

// ErrInvalidSize is returned by New for a non-positive size.
var ErrInvalidSize = errors.New("limiter size must be positive")

// Unit is one independent piece of work.
type Unit[T any] func(ctx context.Context) (T, error)

// Result is the settled outcome of a single unit.
type Result[T any] struct {
	Value T
	Err   error
}

// UnitError attributes a failure to the unit submitted at Index.
type UnitError struct {
	Index int
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d: %v", e.Index, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Limiter is a counting admission gate. It does not queue or reorder work;
// units simply wait for a free slot.
type Limiter struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a Limiter that admits at most size concurrent units.
func New(size int) (*Limiter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}, nil
}

// Size returns the configured concurrency cap.
func (l *Limiter) Size() int {
	return l.size
}

func (l *Limiter) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	metrics.IncInflight()
	return nil
}

func (l *Limiter) release() {
	metrics.DecInflight()
	l.sem.Release(1)
}

// Gather runs every unit and returns their values in submission order.
// The first failure cancels the remaining units and is returned as a *UnitError.
func Gather[T any](ctx context.Context, l *Limiter, units []Unit[T]) ([]T, error) {
	results := make([]T, len(units))
	g, gctx := errgroup.WithContext(ctx)
	for i, unit := range units {
		g.Go(func() error {
			if err := l.acquire(gctx); err != nil {
				return &UnitError{Index: i, Err: err}
			}
			defer l.release()

			value, err := unit(gctx)
			if err != nil {
				return &UnitError{Index: i, Err: err}
			}
			results[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GatherSettled runs every unit to completion and returns one Result per unit
// in submission order. A failing unit does not affect the others.
func GatherSettled[T any](ctx context.Context, l *Limiter, units []Unit[T]) []Result[T] {
	results := make([]Result[T], len(units))
	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.acquire(ctx); err != nil {
				results[i] = Result[T]{Err: err}
				return
			}
			defer l.release()

			value, err := unit(ctx)
			results[i] = Result[T]{Value: value, Err: err}
		}()
	}
	wg.Wait()
	return results
}
