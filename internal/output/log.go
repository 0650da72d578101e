// Package output renders pipeline events for people and other programs:
// console and log file lines, CSV rows, a WebSocket live view and MQTT
// messages.
package output

import (
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/pipeline"
)

// readErrorInterval bounds how often a failing port is reported.
const readErrorInterval = 5 * time.Second

// LogSink writes human-readable progress lines. Per-frame warnings go out
// at warn level, except non-GGA traffic which is debug only. Transport
// read failures are logged at most once per readErrorInterval, with a
// count of the ones skipped in between.
type LogSink struct {
	log *zap.SugaredLogger
	now func() time.Time

	lastReadErr time.Time
	skipped     int
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log, now: time.Now}
}

func (s *LogSink) Handle(ev pipeline.Event) {
	switch ev := ev.(type) {
	case pipeline.CalibrationStarted:
		s.log.Info("Data is altitude data (geoid altitude)")
		s.log.Infof("Collecting %d base readings to establish ground altitude.", ev.Target)

	case pipeline.CalibrationProgress:
		s.log.Infof("Base reading %02d/%d... Sat: %02d, Ground altitude: %v m",
			ev.Index, ev.Target, ev.Record.Satellites, ev.Record.Altitude)

	case pipeline.BaselineReady:
		b := ev.Baseline
		s.log.Infof("Ground altitude average set to %v m", altitude.Round2(b.Mean))
		s.log.Infof("Sample variance: %v m^2", altitude.Round3(b.Variance))
		s.log.Infof("Sample standard deviation: %v m", altitude.Round3(b.StdDev))
		s.log.Info("Program is ready for flight.")

	case pipeline.Reading:
		r := ev.Report
		s.log.Infof("[%s] Sat: %02d, Relative altitude: %.2f m", r.Label, r.Satellites, r.Relative)

	case pipeline.Warning:
		s.warn(ev)

	case pipeline.Fatal:
		s.log.Errorf("Error: %v", ev.Err)
	}
}

func (s *LogSink) warn(w pipeline.Warning) {
	switch w.Kind {
	case pipeline.KindNotGGA:
		s.log.Debugw("skipping sentence", "frame", w.Frame)
	case pipeline.KindTransportRead:
		now := s.now()
		if !s.lastReadErr.IsZero() && now.Sub(s.lastReadErr) < readErrorInterval {
			s.skipped++
			return
		}
		if s.skipped > 0 {
			s.log.Warnw("Failed to read from serial port.", "error", w.Err, "repeated", s.skipped)
		} else {
			s.log.Warnw("Failed to read from serial port.", "error", w.Err)
		}
		s.lastReadErr = now
		s.skipped = 0
	case pipeline.KindEncoding:
		s.log.Warnw("Failed to decode bytestring.", "error", w.Err)
	case pipeline.KindNoFix:
		s.log.Warnw("No GPS signal.", "reason", w.Err)
	case pipeline.KindUnitMismatch:
		s.log.Warnw("Alert! Output from GPS was not as expected! Altitude was not given in meters.", "reason", w.Err)
	default:
		s.log.Warnw("Received corrupt data. Weak signal.", "kind", w.Kind.String(), "error", w.Err)
	}
}
