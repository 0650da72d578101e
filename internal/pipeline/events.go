package pipeline

import (
	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/nmea"
)

// Event is emitted by the pipeline to a Sink. The concrete types below
// are the complete set.
type Event interface {
	event()
}

// CalibrationStarted is emitted once before the first frame is read.
type CalibrationStarted struct {
	Target int
}

// CalibrationProgress is emitted for every accepted base reading.
type CalibrationProgress struct {
	Index  int // 1-based
	Target int
	Record nmea.GGA
}

// BaselineReady is emitted once, when the last base reading is in.
type BaselineReady struct {
	Baseline altitude.Baseline
}

// Reading is one relative altitude report.
type Reading struct {
	Report altitude.Report
}

// Warning carries a recoverable, per-frame problem.
type Warning struct {
	Kind  Kind
	Err   error
	Frame string
}

// Fatal is emitted by the caller for configuration or transport failures
// before it exits.
type Fatal struct {
	Err error
}

func (CalibrationStarted) event()  {}
func (CalibrationProgress) event() {}
func (BaselineReady) event()       {}
func (Reading) event()             {}
func (Warning) event()             {}
func (Fatal) event()               {}

// Sink receives pipeline events. Handle is called from the pipeline
// goroutine and should not block for long.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(ev Event) { f(ev) }

// Kind classifies recoverable per-frame problems.
type Kind int

const (
	KindTransportRead Kind = iota
	KindEncoding
	KindNotGGA
	KindMalformed
	KindChecksumMismatch
	KindDecode
	KindNoFix
	KindUnitMismatch
	numKinds
)

var kindNames = [...]string{
	KindTransportRead:    "transport_read",
	KindEncoding:         "encoding",
	KindNotGGA:           "not_gga",
	KindMalformed:        "malformed",
	KindChecksumMismatch: "checksum_mismatch",
	KindDecode:           "decode",
	KindNoFix:            "no_fix",
	KindUnitMismatch:     "unit_mismatch",
}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}
