package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FixQuality is the GGA fix quality indicator (field 6).
type FixQuality int

const (
	NoFix   FixQuality = 0
	GPSFix  FixQuality = 1
	DGPSFix FixQuality = 2
)

var qualityLabels = map[FixQuality]string{
	0: "No fix",
	1: "GPS",
	2: "DGPS",
	3: "PPS",
	4: "RTK",
	5: "Float RTK",
	6: "Estimated",
	7: "Manual",
	8: "Simulation",
}

func (q FixQuality) String() string {
	if s, ok := qualityLabels[q]; ok {
		return s
	}
	return fmt.Sprintf("quality %d", int(q))
}

// GGA holds the decoded fields of a GGA sentence.
type GGA struct {
	Time         string     `json:"time"`
	Latitude     float64    `json:"latitude"`  // Decimal degrees
	Longitude    float64    `json:"longitude"` // Decimal degrees
	Quality      FixQuality `json:"quality"`
	Satellites   int        `json:"satellites"`
	HDOP         float64    `json:"hdop"`
	Altitude     float64    `json:"altitude"`
	AltitudeUnit string     `json:"altitudeUnit"`
	Separation   float64    `json:"separation"` // Geoid separation
}

// UnitMismatch reports whether the altitude is in something other than
// meters. The value is still usable but should be flagged.
func (g GGA) UnitMismatch() bool { return g.AltitudeUnit != "M" }

// GGA field positions.
const (
	fieldTime       = 1
	fieldLat        = 2
	fieldLatHemi    = 3
	fieldLon        = 4
	fieldLonHemi    = 5
	fieldQuality    = 6
	fieldSatellites = 7
	fieldHDOP       = 8
	fieldAltitude   = 9
	fieldAltUnit    = 10
	fieldSeparation = 11

	minGGAFields = fieldAltUnit + 1
)

// DecodeGGA decodes the comma-split fields of a validated GGA sentence.
// Quality, satellites and altitude are required; position, HDOP and
// separation are best-effort. Quality is decoded first: when a later
// required field fails, the returned GGA still carries Quality and the
// *DecodeError reports QualityKnown, so a no-fix sentence with empty
// fields can be told apart from corrupt data.
func DecodeGGA(fields []string) (GGA, error) {
	// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
	if len(fields) < minGGAFields {
		return GGA{}, fmt.Errorf("nmea: GGA has %d fields, want at least %d: %w",
			len(fields), minGGAFields, ErrDecode)
	}

	var g GGA
	q, err := strconv.Atoi(strings.TrimSpace(fields[fieldQuality]))
	if err != nil || q < 0 {
		return GGA{}, &DecodeError{Field: fieldQuality, Name: "quality", Value: fields[fieldQuality]}
	}
	g.Quality = FixQuality(q)
	g.Time = fields[fieldTime]

	sats, err := strconv.Atoi(strings.TrimSpace(fields[fieldSatellites]))
	if err != nil || sats < 0 {
		return g, &DecodeError{Field: fieldSatellites, Name: "satellites", Value: fields[fieldSatellites]}
	}
	g.Satellites = sats

	alt, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldAltitude]), 64)
	if err != nil || math.IsNaN(alt) || math.IsInf(alt, 0) {
		return g, &DecodeError{Field: fieldAltitude, Name: "altitude", Value: fields[fieldAltitude]}
	}
	g.Altitude = alt
	g.AltitudeUnit = strings.TrimSpace(fields[fieldAltUnit])

	g.Latitude = coordinate(fields[fieldLat], fields[fieldLatHemi])
	g.Longitude = coordinate(fields[fieldLon], fields[fieldLonHemi])
	if hdop, err := strconv.ParseFloat(fields[fieldHDOP], 64); err == nil {
		g.HDOP = hdop
	}
	if len(fields) > fieldSeparation {
		if sep, err := strconv.ParseFloat(fields[fieldSeparation], 64); err == nil {
			g.Separation = sep
		}
	}
	return g, nil
}

// coordinate converts a [d]ddmm.mmmm value and its hemisphere letter to
// signed decimal degrees. The last two digits before the point are whole
// minutes. Empty or unparsable input yields 0.
func coordinate(value, hemi string) float64 {
	dot := strings.IndexByte(value, '.')
	if dot < 0 {
		dot = len(value)
	}
	if dot < 2 || hemi == "" {
		return 0
	}
	var deg float64
	if dot > 2 {
		d, err := strconv.ParseUint(value[:dot-2], 10, 16)
		if err != nil {
			return 0
		}
		deg = float64(d)
	}
	minutes, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0
	}
	v := deg + minutes/60
	switch hemi {
	case "S", "W":
		v = -v
	}
	return v
}
