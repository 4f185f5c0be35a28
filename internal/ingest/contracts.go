package ingest

import (
	"context"

	"github.com/tinytelemetry/hubtrail/internal/model"
)

// EnvelopeProcessor consumes source-tagged hub messages and persists the
// ones that decode.
type EnvelopeProcessor interface {
	Process(model.IngestEnvelope) (Result, error)
	Run(ctx context.Context, in <-chan model.IngestEnvelope) error
	Stats() model.IngestStats
}

var _ EnvelopeProcessor = (*Processor)(nil)
