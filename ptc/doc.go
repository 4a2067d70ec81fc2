// Package ptc implements a generic Producer-Transformer-Consumer pipeline:
// one producer goroutine pulls items from a Source, a fixed pool of worker
// goroutines apply a Transformer to each item in parallel, and one consumer
// goroutine hands the results to a Sink.
//
// The pipeline never copies an item's payload in flight. Items move between
// goroutines by ownership transfer through a SlotArray, a fixed-size array
// of atomic cells that either hold nothing or exclusively own one item.
// There is no internal mutex: every handoff is a single atomic
// compare-and-swap (publish) or swap (withdraw).
//
// # Usage
//
//	p := ptc.New(ptc.Config{WorkerCount: 4}, source, sink, transform)
//	if err := p.Start(ctx); err != nil {
//	    // ...
//	}
//	if err := p.WaitForFinish(ctx); err != nil {
//	    // first error surfaced by the source, a worker, or the sink
//	}
//
// # Ordering
//
// Items are not globally ordered: with more than one worker, the sink may
// observe results in a different order than the source produced them.
// Pipelines that need order preservation must recover it downstream, for
// example by tagging items with a sequence number in the Transformer.
package ptc
