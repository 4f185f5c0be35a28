package model

// IngestEnvelope carries one raw hub message with source metadata.
// It is the transport contract between input sources and the ingest pipeline.
type IngestEnvelope struct {
	Source string
	Data   []byte
}
