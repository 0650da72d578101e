package nmea

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// RawFrame is one delimiter-terminated line as read from the transport,
// with the trailing CR/LF removed.
type RawFrame []byte

// ReadError reports a failed transport read. The partial frame is dropped;
// the next call to Next starts a fresh read.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("nmea: transport read failed: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// Framer pulls NMEA lines out of a byte stream.
type Framer struct {
	r *bufio.Reader
}

// NewFramer wraps r. The Framer has no timeout of its own; Next blocks for
// as long as the underlying Read does.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReaderSize(r, 512)}
}

// Next returns the next frame. A failed read yields a *ReadError and the
// Framer stays usable. io.EOF is returned once the transport is closed.
func (f *Framer) Next() (RawFrame, error) {
	line, err := f.r.ReadBytes('\n')
	if err != nil {
		if isEndOfStream(err) {
			// Last line without a terminator is still a frame.
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				return RawFrame(trimmed), nil
			}
			return nil, io.EOF
		}
		return nil, &ReadError{Err: err}
	}
	return RawFrame(bytes.TrimSpace(line)), nil
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

// Text decodes a frame as UTF-8 text. Frames that are not valid text are
// rejected with ErrEncoding.
func Text(f RawFrame) (string, error) {
	if !utf8.Valid(f) {
		return "", ErrEncoding
	}
	return string(f), nil
}
