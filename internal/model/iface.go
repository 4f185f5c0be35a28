package model

// Appender assigns the next sequence id to payload and persists it.
type Appender interface {
	Append(payload []byte) (uint64, error)
}

// SeqReporter exposes the last assigned sequence id.
type SeqReporter interface {
	LastSeq() uint64
}

// IngestStats is a snapshot of pipeline counters.
type IngestStats struct {
	Ignored  uint64
	Accepted uint64
	Rejected uint64
}

// StatsReporter exposes pipeline counters for read surfaces.
type StatsReporter interface {
	Stats() IngestStats
}
