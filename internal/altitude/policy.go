package altitude

import (
	"github.com/shaunagostinho/relalt/internal/nmea"
)

// Policy decides which fix qualities are usable for calibration and
// reporting.
type Policy struct {
	// Accept lists usable qualities. An empty list accepts every quality.
	Accept []nmea.FixQuality
}

// DefaultPolicy accepts GPS and DGPS fixes only.
func DefaultPolicy() Policy {
	return Policy{Accept: []nmea.FixQuality{nmea.GPSFix, nmea.DGPSFix}}
}

// AcceptAll accepts every quality, including no fix.
func AcceptAll() Policy { return Policy{} }

func (p Policy) Accepts(q nmea.FixQuality) bool {
	if len(p.Accept) == 0 {
		return true
	}
	for _, a := range p.Accept {
		if a == q {
			return true
		}
	}
	return false
}
