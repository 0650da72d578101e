package output

import (
	"go.uber.org/zap"

	"github.com/shaunagostinho/relalt/internal/logger"
	"github.com/shaunagostinho/relalt/internal/pipeline"
)

// CSVSink records base readings and relative readings as CSV rows.
type CSVSink struct {
	rec *logger.Recorder
	log *zap.SugaredLogger
}

func NewCSVSink(rec *logger.Recorder, log *zap.SugaredLogger) *CSVSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CSVSink{rec: rec, log: log.With("component", "csv")}
}

func (s *CSVSink) Handle(ev pipeline.Event) {
	var row logger.Row
	switch ev := ev.(type) {
	case pipeline.CalibrationProgress:
		g := ev.Record
		row = logger.Row{
			Phase:      "base",
			Quality:    int(g.Quality),
			Label:      g.Quality.String(),
			Satellites: g.Satellites,
			Altitude:   g.Altitude,
			GPSTime:    g.Time,
			Latitude:   g.Latitude,
			Longitude:  g.Longitude,
		}
	case pipeline.Reading:
		r := ev.Report
		row = logger.Row{
			Phase:      "flight",
			Quality:    int(r.Quality),
			Label:      r.Label,
			Satellites: r.Satellites,
			Altitude:   r.Altitude,
			Relative:   r.Relative,
			GPSTime:    r.Time,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
		}
	default:
		return
	}
	if err := s.rec.Record(row); err != nil {
		s.log.Warnf("record failed: %v", err)
	}
}

func (s *CSVSink) Close() error { return s.rec.Close() }
