package nmea

import "errors"

// Sentence-level rejections. None of them are fatal: the caller drops the
// frame and reads the next one.
var (
	ErrEncoding         = errors.New("nmea: frame is not valid UTF-8")
	ErrNotGGA           = errors.New("nmea: not a GGA sentence")
	ErrMalformed        = errors.New("nmea: malformed sentence")
	ErrChecksumMismatch = errors.New("nmea: checksum mismatch")
	ErrDecode           = errors.New("nmea: cannot decode field")
)

// DecodeError names the GGA field that could not be decoded.
type DecodeError struct {
	Field int
	Name  string
	Value string
}

func (e *DecodeError) Error() string {
	if e.Value == "" {
		return "nmea: GGA field " + e.Name + " is empty"
	}
	return "nmea: GGA field " + e.Name + " has invalid value " + `"` + e.Value + `"`
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// QualityKnown reports whether the fix quality decoded before this field
// failed.
func (e *DecodeError) QualityKnown() bool { return e.Field != fieldQuality }
