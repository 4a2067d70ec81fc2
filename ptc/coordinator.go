package ptc

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/ptcpipe/component"
	apperrors "github.com/kbukum/ptcpipe/errors"
	"github.com/kbukum/ptcpipe/logger"
	"github.com/kbukum/ptcpipe/observability"
)

// Pipeline is the coordinator: it owns the producer, the consumer, and N
// worker goroutines, and orchestrates their startup and shutdown. It
// implements component.Component so a host application can register a
// running pipeline alongside its other infrastructure.
type Pipeline[T, O any] struct {
	cfg         Config
	transformer Transformer[T, O]

	input  *SlotArray[T]
	output *SlotArray[O]

	slotFreeIn   Wakeup
	itemAvailIn  Wakeup
	itemAvailOut Wakeup
	slotFreeOut  Wakeup

	producer *producer[T]
	consumer *consumer[O]

	workers   sync.WaitGroup
	workerErr chan error

	metrics *observability.Metrics
	log     *logger.Logger

	mu         sync.Mutex
	started    bool
	runID      uuid.UUID
	firstErr   error
	cancel     context.CancelFunc
	finishOnce sync.Once
}

// Option customizes a Pipeline at construction time.
type Option[T, O any] func(*Pipeline[T, O])

// WithMetrics attaches an observability.Metrics instance the pipeline
// records throughput and queue-depth counters to.
func WithMetrics[T, O any](m *observability.Metrics) Option[T, O] {
	return func(p *Pipeline[T, O]) {
		p.metrics = m
	}
}

// New constructs a Pipeline. cfg.ApplyDefaults is not called automatically;
// call it (or cfg.Validate) before New if cfg was not already normalized.
func New[T, O any](cfg Config, source Source[T], sink Sink[O], transformer Transformer[T, O], opts ...Option[T, O]) *Pipeline[T, O] {
	p := &Pipeline[T, O]{
		cfg:         cfg,
		transformer: transformer,
		log:         logger.WithComponent("ptc"),
	}
	for _, opt := range opts {
		opt(p)
	}

	variant := WakeupVariant(cfg.WakeupVariant)
	p.input = NewSlotArray[T](cfg.inputCapacity())
	p.output = NewSlotArray[O](cfg.outputCapacity())

	p.slotFreeIn = NewWakeup(variant, cfg.inputCapacity(), cfg.PollInterval)
	p.itemAvailIn = NewWakeup(variant, cfg.inputCapacity(), cfg.PollInterval)
	p.itemAvailOut = NewWakeup(variant, cfg.outputCapacity(), cfg.PollInterval)
	p.slotFreeOut = NewWakeup(variant, cfg.outputCapacity(), cfg.PollInterval)

	p.producer = newProducer[T](source, p.input, p.slotFreeIn, p.itemAvailIn, p.metrics)
	p.consumer = newConsumer[O](sink, p.output, p.itemAvailOut, p.slotFreeOut, p.metrics)
	return p
}

// Name implements component.Component.
func (p *Pipeline[T, O]) Name() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return "ptc"
}

// Start implements component.Component. It spawns the producer goroutine,
// the consumer goroutine, and WorkerCount worker goroutines, then returns
// immediately; call WaitForFinish to block until the run completes.
func (p *Pipeline[T, O]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.runID = uuid.New()
	p.started = true

	ctx, span := observability.StartSpan(ctx, "ptc.pipeline.run")
	span.SetAttributes(
		attribute.String(observability.AttrRunID, p.runID.String()),
		attribute.Int("ptc.worker_count", p.cfg.WorkerCount),
		attribute.String("ptc.wakeup_variant", p.cfg.WakeupVariant),
	)
	defer span.End()

	if budget := p.cfg.itemByteBudget(); budget > 0 {
		p.log.Info("item byte budget configured", logger.Fields("max_item_bytes", budget))
	}
	p.log.Info("starting pipeline", logger.Fields(
		"run_id", p.runID.String(),
		"worker_count", p.cfg.WorkerCount,
		"wakeup_variant", p.cfg.WakeupVariant,
	))

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.producer.run(runCtx)
	p.consumer.start(runCtx)
	// A dead consumer (sink failure) would otherwise leave workers blocked
	// forever pushing into a full, never-drained output buffer; cancel the
	// run context the moment the consumer goroutine exits with an error so
	// blocked workers observe it and unwind instead.
	go func() {
		<-p.consumer.done
		if p.consumer.Err() != nil {
			cancel()
		}
	}()

	p.workerErr = make(chan error, p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.workers.Add(1)
		go p.runWorker(runCtx, i)
	}
	return nil
}

// runWorker withdraws from input, applies the transformer, and pushes the
// result to output, looping until the input buffer reports EOF-and-empty.
func (p *Pipeline[T, O]) runWorker(ctx context.Context, id int) {
	defer p.workers.Done()
	log := p.log.WithFields(logger.Fields("worker_id", id))
	if p.metrics != nil {
		p.metrics.RecordWorkerActive(ctx, 1)
		defer p.metrics.RecordWorkerActive(ctx, -1)
	}

	for {
		item, ok := p.blockingWithdraw(ctx)
		if !ok {
			return
		}
		if p.metrics != nil {
			p.metrics.RecordQueueDepth(ctx, "input", -1)
		}

		result, err := p.transformer(ctx, *item)
		if err != nil {
			wrapped := apperrors.TransformFailure(err).WithDetail("worker_id", id)
			log.Error("transformer failed", logger.Fields("error", err))
			if p.metrics != nil {
				p.metrics.RecordItemError(ctx, "transform")
			}
			select {
			case p.workerErr <- wrapped:
			default:
			}
			// A dead worker leaves the producer stuck publishing into an
			// input buffer nobody drains; cancel the run so it, and any
			// sibling worker, unwind instead of blocking forever.
			p.cancel()
			return
		}
		if p.metrics != nil {
			p.metrics.RecordTransformed(ctx)
		}

		for !p.output.TryPublish(&result) {
			p.slotFreeOut.Wait(ctx)
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
		if p.metrics != nil {
			p.metrics.RecordQueueDepth(ctx, "output", 1)
		}
		p.itemAvailOut.Signal()
	}
}

// blockingWithdraw combines TryWithdraw with the shutdown-aware wait
// protocol: EOF is read before the scan so that any
// publication made prior to EOF being set is guaranteed visible.
func (p *Pipeline[T, O]) blockingWithdraw(ctx context.Context) (*T, bool) {
	for {
		eof := p.producer.eofReached()
		if item, ok := p.input.TryWithdraw(); ok {
			p.slotFreeIn.Signal()
			return item, true
		}
		if eof {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
		p.itemAvailIn.Wait(ctx)
	}
}

// WaitForFinish blocks until every worker has exited, the output buffer
// has drained, and the consumer has shut down. It returns the first error
// surfaced by the source, any worker, or the sink, if any. The drain-and-
// shutdown sequence runs at most once; calling WaitForFinish again (directly,
// or via Stop) after it has already completed just returns the same result.
// Called before Start, it returns nil at once.
func (p *Pipeline[T, O]) WaitForFinish(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	p.finishOnce.Do(func() {
		defer p.cancel()
		p.producer.wait()
		p.workers.Wait()
		close(p.workerErr)

		for !p.consumer.isIdle() {
			select {
			case <-ctx.Done():
				p.consumer.shutdown()
				p.setFirstErr(ctx.Err())
				return
			default:
			}
		}
		p.consumer.shutdown()

		p.log.Info("pipeline finished", logger.Fields("run_id", p.runID.String()))

		if err := p.producer.Err(); err != nil {
			p.setFirstErr(err)
			return
		}
		for err := range p.workerErr {
			if err != nil {
				p.setFirstErr(err)
				return
			}
		}
		if err := p.consumer.Err(); err != nil {
			p.setFirstErr(err)
			return
		}
	})
	return p.firstErrSafe()
}

func (p *Pipeline[T, O]) setFirstErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.firstErr = err
}

// Stop implements component.Component. It behaves like WaitForFinish but
// is safe to call even if Start was never invoked, and safe to call more
// than once (including after WaitForFinish has already run to completion).
func (p *Pipeline[T, O]) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	return p.WaitForFinish(ctx)
}

// Finished advisory-reports whether the producer has signalled EOF.
func (p *Pipeline[T, O]) Finished() bool {
	return p.producer.eofReached()
}

// Health implements component.Component.
func (p *Pipeline[T, O]) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	msg := ""
	if err := p.firstErrSafe(); err != nil {
		status = component.StatusUnhealthy
		msg = err.Error()
	} else if !p.started {
		status = component.StatusDegraded
		msg = "not started"
	}
	return component.Health{Name: p.Name(), Status: status, Message: msg}
}

func (p *Pipeline[T, O]) firstErrSafe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// Produced returns the number of items pulled from the source so far.
func (p *Pipeline[T, O]) Produced() int64 { return p.producer.produced.Load() }

// Consumed returns the number of items delivered to the sink so far.
func (p *Pipeline[T, O]) Consumed() int64 { return p.consumer.consumed.Load() }

// RunID returns the UUID tagging this pipeline's most recent run.
func (p *Pipeline[T, O]) RunID() uuid.UUID { return p.runID }
