package ptc

import (
	"context"
	"sync/atomic"

	apperrors "github.com/kbukum/ptcpipe/errors"
	"github.com/kbukum/ptcpipe/logger"
	"github.com/kbukum/ptcpipe/observability"
)

// producer owns the dedicated goroutine that pulls items from a Source and
// publishes them into the input slot array.
type producer[T any] struct {
	source Source[T]
	input  *SlotArray[T]

	slotFree  Wakeup
	itemAvail Wakeup

	eof      atomic.Bool
	produced atomic.Int64

	log     *logger.Logger
	metrics *observability.Metrics

	err  atomic.Pointer[error]
	done chan struct{}
}

func newProducer[T any](source Source[T], input *SlotArray[T], slotFree, itemAvail Wakeup, metrics *observability.Metrics) *producer[T] {
	return &producer[T]{
		source:    source,
		input:     input,
		slotFree:  slotFree,
		itemAvail: itemAvail,
		log:       logger.WithComponent("ptc.producer"),
		metrics:   metrics,
		done:      make(chan struct{}),
	}
}

// eofReached reports whether the source has returned EOF. Acquire-ordered:
// any worker observing true has a guarantee that every item published
// before the flag was set is already visible.
func (p *producer[T]) eofReached() bool {
	return p.eof.Load()
}

func (p *producer[T]) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item := new(T)
		ok, err := p.source.Next(ctx, item)
		if err != nil {
			wrapped := apperrors.SourceFailure(err).
				WithDetail("produced", p.produced.Load())
			p.log.Error("source failed", logger.Fields("produced", p.produced.Load(), "error", err))
			if p.metrics != nil {
				p.metrics.RecordItemError(ctx, "source")
			}
			var e error = wrapped
			p.err.Store(&e)
			p.eof.Store(true)
			p.itemAvail.SignalN(p.input.Len())
			return
		}
		if !ok {
			// Release-store EOF before broadcasting wakeups so that any
			// worker which observes a wakeup also observes EOF.
			p.eof.Store(true)
			p.itemAvail.SignalN(p.input.Len())
			p.log.Info("producer reached eof", logger.Fields("produced", p.produced.Load()))
			return
		}

		for !p.input.TryPublish(item) {
			p.slotFree.Wait(ctx)
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
		p.produced.Add(1)
		if p.metrics != nil {
			p.metrics.RecordProduced(ctx)
			p.metrics.RecordQueueDepth(ctx, "input", 1)
		}
		p.itemAvail.Signal()
	}
}

func (p *producer[T]) wait() {
	<-p.done
}

func (p *producer[T]) Err() error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}
