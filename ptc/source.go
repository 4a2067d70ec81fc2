package ptc

import (
	"context"
	"sync/atomic"
)

// Source is the producer's external collaborator. It is invoked only by
// the producer goroutine, which owns item for the duration of the call.
// Next fills item and returns true, or returns false to signal EOF. An
// error is fatal to the pipeline.
type Source[T any] interface {
	Next(ctx context.Context, item *T) (bool, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context, item *T) (bool, error)

// Next implements Source.
func (f SourceFunc[T]) Next(ctx context.Context, item *T) (bool, error) {
	return f(ctx, item)
}

// Sink is the consumer's external collaborator. It is invoked only by the
// consumer goroutine, which hands it ownership of one transformed item.
type Sink[O any] interface {
	Consume(ctx context.Context, item O) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[O any] func(ctx context.Context, item O) error

// Consume implements Sink.
func (f SinkFunc[O]) Consume(ctx context.Context, item O) error {
	return f(ctx, item)
}

// Transformer is applied to one item on a worker goroutine. It must be
// safe to invoke concurrently on independent items from multiple workers;
// it is not required to be reentrant on the same item.
type Transformer[T, O any] func(ctx context.Context, item T) (O, error)

// Iterator provides pull-based sequential access to a stream of values.
// It is the shape every batch-pulling adapter in this module's corpus
// (database cursors, Kafka consumers, paginated HTTP clients) converges
// on, so IteratorSource lets any of them feed a pipeline directly.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// IteratorSource adapts an Iterator to the Source contract. The pipeline
// never calls Close: the caller does, after WaitForFinish returns.
type IteratorSource[T any] struct {
	it Iterator[T]
}

// NewIteratorSource wraps it as a Source.
func NewIteratorSource[T any](it Iterator[T]) *IteratorSource[T] {
	return &IteratorSource[T]{it: it}
}

// Next implements Source.
func (s *IteratorSource[T]) Next(ctx context.Context, item *T) (bool, error) {
	v, ok, err := s.it.Next(ctx)
	if err != nil || !ok {
		return false, err
	}
	*item = v
	return true, nil
}

// Close releases the wrapped iterator's resources.
func (s *IteratorSource[T]) Close() error {
	return s.it.Close()
}

// SliceSource is a Source over an in-memory slice, the adapter this
// module's tests use in place of a real upstream.
type SliceSource[T any] struct {
	items []T
	index int
}

// NewSliceSource wraps items as a Source.
func NewSliceSource[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

// Next implements Source.
func (s *SliceSource[T]) Next(_ context.Context, item *T) (bool, error) {
	if s.index >= len(s.items) {
		return false, nil
	}
	*item = s.items[s.index]
	s.index++
	return true, nil
}

// LimitSource wraps an inner Source and reports EOF once max items have
// been produced, regardless of what the inner source still has to offer.
// Capping an otherwise-unbounded source this way is common enough to
// warrant a first-class adapter rather than leaving it to every embedder.
type LimitSource[T any] struct {
	inner   Source[T]
	max     int64
	emitted atomic.Int64
}

// NewLimitSource caps inner at max items. A non-positive max disables the
// cap and simply delegates to inner.
func NewLimitSource[T any](inner Source[T], max int) *LimitSource[T] {
	return &LimitSource[T]{inner: inner, max: int64(max)}
}

// Next implements Source.
func (s *LimitSource[T]) Next(ctx context.Context, item *T) (bool, error) {
	if s.max > 0 && s.emitted.Load() >= s.max {
		return false, nil
	}
	ok, err := s.inner.Next(ctx, item)
	if err != nil || !ok {
		return false, err
	}
	s.emitted.Add(1)
	return true, nil
}
