// Package exchange converts between a sequence store and the line-oriented
// export format "<seq>:<payload>\n".
package exchange

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/tinytelemetry/hubtrail/internal/hubitat"
	"github.com/tinytelemetry/hubtrail/internal/model"
	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

// ErrUnframeable is returned by a raw export when a payload contains a
// newline and so cannot be written as a single line. EncodingBase64 frames
// any payload.
var ErrUnframeable = errors.New("exchange: payload contains newline")

// Encoding selects how the payload part of each line is written.
type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingBase64 Encoding = "base64"
	EncodingJSON   Encoding = "json"
)

// ParseEncoding validates s. An empty string selects EncodingRaw.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EncodingRaw, nil
	case EncodingRaw, EncodingBase64, EncodingJSON:
		return e, nil
	default:
		return "", fmt.Errorf("exchange: unknown encoding %q (want raw, base64 or json)", s)
	}
}

// Iterable is the read side of a store.
type Iterable interface {
	Iterate() *seqstore.Iterator
}

// ExportStats summarises an export.
type ExportStats struct {
	Records uint64
	// Undecodable counts payloads left out of a json export.
	Undecodable uint64
	// Unreadable counts store entries the iterator skipped.
	Unreadable int64
}

// Export writes every record of src to w in ascending order.
func Export(w io.Writer, src Iterable, enc Encoding) (ExportStats, error) {
	var stats ExportStats
	bw := bufio.NewWriter(w)
	jw := json.NewEncoder(bw)

	it := src.Iterate()
	for it.Next() {
		rec := it.Record()
		var err error
		switch enc {
		case EncodingRaw, "":
			if bytes.IndexByte(rec.Payload, '\n') >= 0 {
				return stats, fmt.Errorf("%w: seq %d", ErrUnframeable, rec.Seq)
			}
			err = writeLine(bw, rec.Seq, rec.Payload)
		case EncodingBase64:
			err = writeLine(bw, rec.Seq, []byte(base64.StdEncoding.EncodeToString(rec.Payload)))
		case EncodingJSON:
			ev, derr := hubitat.UnmarshalEvent(rec.Payload)
			if derr != nil {
				stats.Undecodable++
				log.Printf("exchange: seq %d: %v", rec.Seq, derr)
				continue
			}
			err = jw.Encode(struct {
				Seq   uint64        `json:"seq"`
				Event hubitat.Event `json:"event"`
			}{rec.Seq, ev})
		default:
			return stats, fmt.Errorf("exchange: export: unsupported encoding %q", enc)
		}
		if err != nil {
			return stats, fmt.Errorf("exchange: write seq %d: %w", rec.Seq, err)
		}
		stats.Records++
	}
	stats.Unreadable = it.Skipped()
	if err := it.Err(); err != nil {
		return stats, fmt.Errorf("exchange: export: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("exchange: flush: %w", err)
	}
	return stats, nil
}

func writeLine(w *bufio.Writer, seq uint64, payload []byte) error {
	var prefix [24]byte
	line := strconv.AppendUint(prefix[:0], seq, 10)
	line = append(line, ':')
	if _, err := w.Write(line); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// ImportOptions controls Import.
type ImportOptions struct {
	Encoding Encoding
	// Verify drops payloads that do not decode as stored events.
	Verify bool
}

// ImportStats summarises an import.
type ImportStats struct {
	Imported uint64
	// Skipped counts lines without a colon.
	Skipped uint64
	// Rejected counts payloads that failed base64 decoding or verification.
	Rejected uint64
	FirstSeq uint64
	LastSeq  uint64
}

// Import appends the payload of every line read from r to dst. Sequence ids in
// the input are ignored; dst assigns its own. A store error aborts the import.
func Import(r io.Reader, dst model.Appender, opts ImportOptions) (ImportStats, error) {
	var stats ImportStats
	switch opts.Encoding {
	case "", EncodingRaw, EncodingBase64:
	default:
		return stats, fmt.Errorf("exchange: import: unsupported encoding %q", opts.Encoding)
	}

	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("exchange: read line %d: %w", lineNo+1, readErr)
		}
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimSuffix(line, []byte{'\n'})
			if err := importLine(line, lineNo, dst, opts, &stats); err != nil {
				return stats, err
			}
		}
		if readErr != nil {
			return stats, nil
		}
	}
}

func importLine(line []byte, lineNo int, dst model.Appender, opts ImportOptions, stats *ImportStats) error {
	_, payload, ok := bytes.Cut(line, []byte{':'})
	if !ok {
		stats.Skipped++
		return nil
	}
	if opts.Encoding == EncodingBase64 {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			stats.Rejected++
			log.Printf("exchange: line %d: base64: %v", lineNo, err)
			return nil
		}
		payload = decoded
	}
	if opts.Verify {
		if _, err := hubitat.UnmarshalEvent(payload); err != nil {
			stats.Rejected++
			log.Printf("exchange: line %d: %v", lineNo, err)
			return nil
		}
	}
	seq, err := dst.Append(payload)
	if err != nil {
		return fmt.Errorf("exchange: import line %d: %w", lineNo, err)
	}
	if stats.FirstSeq == 0 {
		stats.FirstSeq = seq
	}
	stats.LastSeq = seq
	stats.Imported++
	return nil
}
