package hubitat

import (
	"errors"
	"fmt"
)

// Failure kinds. Every *DecodeError matches exactly one of these with
// errors.Is.
var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownShape   = errors.New("unknown shape")
	ErrParseInt       = errors.New("parse int")
	ErrParseFloat     = errors.New("parse float")
	ErrParseBool      = errors.New("parse bool")
	ErrParseTimestamp = errors.New("parse timestamp")
	ErrParseEnum      = errors.New("parse enum")
	ErrParseUnit      = errors.New("parse unit")
)

var (
	errMissingField = errors.New("missing or null")
	errEpochRange   = errors.New("outside years 0000-9999")
)

var reasonLabels = map[error]string{
	ErrMalformed:      "malformed",
	ErrUnknownShape:   "unknown_shape",
	ErrParseInt:       "parse_int",
	ErrParseFloat:     "parse_float",
	ErrParseBool:      "parse_bool",
	ErrParseTimestamp: "parse_timestamp",
	ErrParseEnum:      "parse_enum",
	ErrParseUnit:      "parse_unit",
}

// DecodeError describes why a message was rejected. For unknown shapes only
// Source and Name are set; for field failures Field, Value and Err identify
// the offending data.
type DecodeError struct {
	Kind   error
	Source string
	Name   string
	Field  string
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Kind == ErrMalformed && e.Field != "":
		return fmt.Sprintf("hubitat: %v: field %s %v", e.Kind, e.Field, e.Err)
	case e.Kind == ErrMalformed:
		return fmt.Sprintf("hubitat: %v: %v", e.Kind, e.Err)
	case e.Kind == ErrUnknownShape:
		return fmt.Sprintf("hubitat: %v source=%q name=%q", e.Kind, e.Source, e.Name)
	case e.Err != nil:
		return fmt.Sprintf("hubitat: %s/%s: %s %q: %v: %v", e.Source, e.Name, e.Field, e.Value, e.Kind, e.Err)
	default:
		return fmt.Sprintf("hubitat: %s/%s: %s %q: %v", e.Source, e.Name, e.Field, e.Value, e.Kind)
	}
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason returns a short label for the failure kind, suitable for metrics.
func (e *DecodeError) Reason() string {
	if label, ok := reasonLabels[e.Kind]; ok {
		return label
	}
	return "unknown"
}
