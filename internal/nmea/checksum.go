package nmea

import (
	"strings"
)

// Sentence is a GGA frame whose checksum has been verified.
type Sentence struct {
	// Body is everything between '$' and '*'.
	Body string
	// Fields is Body split on ','. Fields[0] is the address, e.g. "GPGGA".
	Fields   []string
	Checksum byte
}

// Validator accepts GGA sentences from a set of talkers.
type Validator struct {
	// Talkers lists accepted upper-case talker IDs, matched exactly.
	// Empty means "GP" only.
	Talkers []string
}

func (v Validator) isGGA(frame string) bool {
	if len(frame) < 6 || frame[0] != '$' || frame[3:6] != "GGA" {
		return false
	}
	talker := frame[1:3]
	if len(v.Talkers) == 0 {
		return talker == "GP"
	}
	for _, t := range v.Talkers {
		if t == talker {
			return true
		}
	}
	return false
}

// Validate checks the identifier and the XOR checksum of a text frame.
// It never panics; every failure is one of ErrNotGGA, ErrMalformed or
// ErrChecksumMismatch.
func (v Validator) Validate(frame string) (Sentence, error) {
	if !v.isGGA(frame) {
		return Sentence{}, ErrNotGGA
	}
	// $GPGGA,...*hh
	star := strings.IndexByte(frame, '*')
	if star < 0 || strings.Count(frame, "*") != 1 {
		return Sentence{}, ErrMalformed
	}
	suffix := frame[star+1:]
	if len(suffix) != 2 {
		return Sentence{}, ErrMalformed
	}
	body := frame[1:star]
	sum := Checksum(body)
	if !strings.EqualFold(hexByte(sum), suffix) {
		return Sentence{}, ErrChecksumMismatch
	}
	return Sentence{
		Body:     body,
		Fields:   strings.Split(body, ","),
		Checksum: sum,
	}, nil
}

// Checksum folds body with XOR into a single byte.
func Checksum(body string) byte {
	var c byte
	for i := 0; i < len(body); i++ {
		c ^= body[i]
	}
	return c
}

const hexDigits = "0123456789abcdef"

// hexByte renders the high and low nibble of c as lowercase hex digits.
func hexByte(c byte) string {
	return string([]byte{hexDigits[c>>4], hexDigits[c&0x0f]})
}

// Format builds a full sentence with its checksum suffix from body.
func Format(body string) string {
	return "$" + body + "*" + strings.ToUpper(hexByte(Checksum(body)))
}
