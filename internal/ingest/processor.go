package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/hubtrail/internal/hubitat"
	"github.com/tinytelemetry/hubtrail/internal/metrics"
	"github.com/tinytelemetry/hubtrail/internal/model"
)

// Outcome classifies what happened to one message.
type Outcome int

const (
	Ignored Outcome = iota
	Accepted
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return metrics.ResultIgnored
	case Accepted:
		return metrics.ResultAccepted
	case Rejected:
		return metrics.ResultRejected
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a processed message. Seq and Event are set only for
// Accepted; Err only for Rejected.
type Result struct {
	Outcome Outcome
	Seq     uint64
	Event   hubitat.Event
	Err     error
}

// Processor decodes hub messages and appends the accepted ones to the store.
type Processor struct {
	store   model.Appender
	decoder *hubitat.Decoder

	ignored  atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewProcessor creates a processor writing to store. A nil decoder uses the
// wall clock.
func NewProcessor(store model.Appender, decoder *hubitat.Decoder) *Processor {
	if decoder == nil {
		decoder = hubitat.NewDecoder(nil)
	}
	return &Processor{store: store, decoder: decoder}
}

// Process handles a single message. Decode failures are reported in the
// result and never returned as an error; a non-nil error means the store
// failed and ingestion must stop.
func (p *Processor) Process(env model.IngestEnvelope) (Result, error) {
	if len(bytes.TrimSpace(env.Data)) == 0 {
		p.ignored.Add(1)
		metrics.ObserveMessage(env.Source, metrics.ResultIgnored)
		return Result{Outcome: Ignored}, nil
	}

	ev, err := p.decoder.DecodeRaw(env.Data)
	if err != nil {
		p.rejected.Add(1)
		reason := "unknown"
		var de *hubitat.DecodeError
		if errors.As(err, &de) {
			reason = de.Reason()
		}
		metrics.ObserveMessage(env.Source, metrics.ResultRejected)
		metrics.IncReject(reason)
		log.Printf("ingest: dropped message from %s: %v", env.Source, err)
		return Result{Outcome: Rejected, Err: err}, nil
	}

	payload, err := hubitat.MarshalEvent(ev)
	if err != nil {
		metrics.ObserveMessage(env.Source, metrics.ResultFailed)
		return Result{}, fmt.Errorf("ingest: encode event: %w", err)
	}

	start := time.Now()
	seq, err := p.store.Append(payload)
	if err != nil {
		metrics.ObserveMessage(env.Source, metrics.ResultFailed)
		return Result{}, fmt.Errorf("ingest: append: %w", err)
	}
	metrics.ObserveAppend(seq, time.Since(start))
	metrics.ObserveMessage(env.Source, metrics.ResultAccepted)
	p.accepted.Add(1)

	log.Printf("ingest: seq=%d %s device=%q hub=%d", seq, ev.Payload.Kind(), ev.DeviceName, ev.HubID)
	return Result{Outcome: Accepted, Seq: seq, Event: ev}, nil
}

// Run processes messages from in until it closes or ctx is cancelled. It
// returns the first store error.
func (p *Processor) Run(ctx context.Context, in <-chan model.IngestEnvelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := p.Process(env); err != nil {
				return err
			}
		}
	}
}

// Stats returns a snapshot of the outcome counters.
func (p *Processor) Stats() model.IngestStats {
	return model.IngestStats{
		Ignored:  p.ignored.Load(),
		Accepted: p.accepted.Load(),
		Rejected: p.rejected.Load(),
	}
}
