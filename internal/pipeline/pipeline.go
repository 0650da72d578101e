// Package pipeline drives the read → frame → validate → decode →
// calibrate-or-report loop over a single NMEA byte stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/nmea"
)

// Options configures a Pipeline.
type Options struct {
	BaseSamples int
	Policy      altitude.Policy
	Validator   nmea.Validator
}

// Stats counts frames by outcome.
type Stats struct {
	Frames   int
	Base     int
	Readings int
	Warnings [numKinds]int
}

// Count returns the number of warnings of kind k.
func (s Stats) Count(k Kind) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	return s.Warnings[k]
}

// Pipeline owns the whole read loop. It is not safe for concurrent use;
// Run is meant to be called once from a single goroutine.
type Pipeline struct {
	framer    *nmea.Framer
	validator nmea.Validator
	policy    altitude.Policy
	cal       *altitude.Calibrator
	rep       *altitude.Reporter
	sink      Sink
	stats     Stats
}

// New validates opts and prepares a pipeline over src. Nothing is read
// from src until Run.
func New(src io.Reader, opts Options, sink Sink) (*Pipeline, error) {
	cal, err := altitude.NewCalibrator(opts.BaseSamples)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &Pipeline{
		framer:    nmea.NewFramer(src),
		validator: opts.Validator,
		policy:    opts.Policy,
		cal:       cal,
		sink:      sink,
	}, nil
}

// Run processes frames until the stream ends (returns nil) or ctx is
// cancelled (returns ctx.Err()). Cancellation is checked before every
// read, never in the middle of one.
func (p *Pipeline) Run(ctx context.Context) error {
	_, target := p.cal.Progress()
	p.sink.Handle(CalibrationStarted{Target: target})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := p.framer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			p.warn(KindTransportRead, err, "")
			continue
		}
		p.stats.Frames++
		p.Process(frame)
	}
}

// Process runs one frame through validation, decoding and the current
// phase.
func (p *Pipeline) Process(frame nmea.RawFrame) {
	text, err := nmea.Text(frame)
	if err != nil {
		p.warn(KindEncoding, err, "")
		return
	}
	sent, err := p.validator.Validate(text)
	if err != nil {
		p.warn(classify(err), err, text)
		return
	}
	rec, err := nmea.DecodeGGA(sent.Fields)
	var de *nmea.DecodeError
	if err != nil && !(errors.As(err, &de) && de.QualityKnown()) {
		p.warn(KindDecode, err, text)
		return
	}
	// Receivers without a fix leave satellites and altitude empty; that is
	// a fix problem, not corrupt data.
	if !p.policy.Accepts(rec.Quality) {
		p.warn(KindNoFix, fmt.Errorf("fix quality %d (%s) not accepted", int(rec.Quality), rec.Quality), text)
		return
	}
	if err != nil {
		kind := KindDecode
		if rec.Quality == nmea.NoFix {
			kind = KindNoFix
		}
		p.warn(kind, err, text)
		return
	}
	if rec.UnitMismatch() {
		p.warn(KindUnitMismatch, fmt.Errorf("altitude unit is %q, not meters", rec.AltitudeUnit), text)
	}

	if p.rep != nil {
		p.stats.Readings++
		p.sink.Handle(Reading{Report: p.rep.Report(rec)})
		return
	}
	p.calibrate(rec)
}

func (p *Pipeline) calibrate(rec nmea.GGA) {
	done, err := p.cal.Add(rec.Altitude)
	if err != nil {
		// Unreachable while rep is nil.
		return
	}
	p.stats.Base++
	n, target := p.cal.Progress()
	p.sink.Handle(CalibrationProgress{Index: n, Target: target, Record: rec})
	if !done {
		return
	}
	b, _ := p.cal.Baseline()
	p.rep = altitude.NewReporter(b)
	p.sink.Handle(BaselineReady{Baseline: b})
}

// Baseline returns the baseline once calibration is complete.
func (p *Pipeline) Baseline() (altitude.Baseline, bool) { return p.cal.Baseline() }

// Stats returns a copy of the frame counters.
func (p *Pipeline) Stats() Stats { return p.stats }

func (p *Pipeline) warn(k Kind, err error, frame string) {
	p.stats.Warnings[k]++
	p.sink.Handle(Warning{Kind: k, Err: err, Frame: frame})
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, nmea.ErrNotGGA):
		return KindNotGGA
	case errors.Is(err, nmea.ErrChecksumMismatch):
		return KindChecksumMismatch
	case errors.Is(err, nmea.ErrEncoding):
		return KindEncoding
	case errors.Is(err, nmea.ErrDecode):
		return KindDecode
	default:
		return KindMalformed
	}
}
