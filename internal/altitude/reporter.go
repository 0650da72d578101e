package altitude

import (
	"math"

	"github.com/shaunagostinho/relalt/internal/nmea"
)

// Report is one relative altitude reading.
type Report struct {
	Quality    nmea.FixQuality `json:"quality"`
	Label      string          `json:"label"`
	Satellites int             `json:"satellites"`
	Altitude   float64         `json:"altitude"` // Geoid altitude as received, meters
	Relative   float64         `json:"relative"` // Altitude above baseline, 2 decimals
	Time       string          `json:"time"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
}

// Reporter subtracts a fixed baseline from each record.
type Reporter struct {
	baseline Baseline
}

func NewReporter(b Baseline) *Reporter {
	return &Reporter{baseline: b}
}

func (r *Reporter) Baseline() Baseline { return r.baseline }

func (r *Reporter) Report(g nmea.GGA) Report {
	return Report{
		Quality:    g.Quality,
		Label:      g.Quality.String(),
		Satellites: g.Satellites,
		Altitude:   g.Altitude,
		Relative:   Round2(g.Altitude - r.baseline.Mean),
		Time:       g.Time,
		Latitude:   g.Latitude,
		Longitude:  g.Longitude,
	}
}

// Round2 rounds x to two decimals, half away from zero, applied to the
// float64 value of x*100. 0.125 becomes 0.13; 1.005 is stored as
// 1.00499... and becomes 1.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Round3 is Round2 with three decimals. Used for variance and stddev.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
