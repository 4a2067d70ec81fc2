package ptc

import (
	"context"
	"sync/atomic"

	apperrors "github.com/kbukum/ptcpipe/errors"
	"github.com/kbukum/ptcpipe/logger"
	"github.com/kbukum/ptcpipe/observability"
)

// consumer owns the dedicated goroutine that drains the output slot array
// and hands each item to the Sink.
type consumer[O any] struct {
	sink   Sink[O]
	output *SlotArray[O]

	itemAvail Wakeup
	slotFree  Wakeup

	run      atomic.Bool
	consumed atomic.Int64

	log     *logger.Logger
	metrics *observability.Metrics

	err  atomic.Pointer[error]
	done chan struct{}
}

func newConsumer[O any](sink Sink[O], output *SlotArray[O], itemAvail, slotFree Wakeup, metrics *observability.Metrics) *consumer[O] {
	c := &consumer[O]{
		sink:      sink,
		output:    output,
		itemAvail: itemAvail,
		slotFree:  slotFree,
		log:       logger.WithComponent("ptc.consumer"),
		metrics:   metrics,
		done:      make(chan struct{}),
	}
	c.run.Store(true)
	return c
}

func (c *consumer[O]) start(ctx context.Context) {
	go c.loop(ctx)
}

// loop runs while run is true OR the previous scan withdrew something:
// shutdown must never stop the goroutine while items remain in the buffer.
func (c *consumer[O]) loop(ctx context.Context) {
	defer close(c.done)
	didWork := true
	for c.run.Load() || didWork {
		didWork = false
		for {
			item, ok := c.output.TryWithdraw()
			if !ok {
				break
			}
			didWork = true
			c.slotFree.Signal()
			if c.metrics != nil {
				c.metrics.RecordQueueDepth(ctx, "output", -1)
			}

			if err := c.sink.Consume(ctx, *item); err != nil {
				wrapped := apperrors.SinkFailure(err).
					WithDetail("consumed", c.consumed.Load())
				c.log.Error("sink failed", logger.Fields("consumed", c.consumed.Load(), "error", err))
				if c.metrics != nil {
					c.metrics.RecordItemError(ctx, "sink")
				}
				var e error = wrapped
				c.err.Store(&e)
				return
			}
			c.consumed.Add(1)
			if c.metrics != nil {
				c.metrics.RecordConsumed(ctx)
			}
		}
		if !didWork {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.itemAvail.Wait(ctx)
		}
	}
}

// isIdle reports whether the output buffer is fully drained.
func (c *consumer[O]) isIdle() bool {
	return c.output.IsEmpty()
}

// shutdown clears the run flag, wakes the goroutine if blocked, and joins.
func (c *consumer[O]) shutdown() {
	c.run.Store(false)
	c.itemAvail.Signal()
	<-c.done
}

func (c *consumer[O]) Err() error {
	if e := c.err.Load(); e != nil {
		return *e
	}
	return nil
}
