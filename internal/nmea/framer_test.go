package nmea

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// scriptedReader returns each chunk in turn; a nil chunk yields errRead.
type scriptedReader struct {
	chunks [][]byte
}

var errRead = errors.New("device reports framing error")

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	if c == nil {
		return 0, errRead
	}
	return copy(p, c), nil
}

func TestFramer_SplitsCRLFLines(t *testing.T) {
	f := NewFramer(strings.NewReader(sampleGGA + "\r\n$GPRMC,1*00\r\n\r\n"))
	want := []string{sampleGGA, "$GPRMC,1*00", ""}
	for i, w := range want {
		got, err := f.Next()
		if err != nil {
			t.Fatalf("frame %d: Next() error: %v", i, err)
		}
		if string(got) != w {
			t.Fatalf("frame %d = %q want %q", i, got, w)
		}
	}
	if _, err := f.Next(); err != io.EOF {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestFramer_ReadErrorDropsPartialFrameAndContinues(t *testing.T) {
	r := &scriptedReader{chunks: [][]byte{
		[]byte("$GPGGA,12"),
		nil,
		[]byte("$GPGGA,second*00\r\n"),
	}}
	f := NewFramer(r)

	_, err := f.Next()
	var re *ReadError
	if !errors.As(err, &re) || !errors.Is(err, errRead) {
		t.Fatalf("err=%v want *ReadError wrapping errRead", err)
	}

	got, err := f.Next()
	if err != nil {
		t.Fatalf("Next() after read error: %v", err)
	}
	if string(got) != "$GPGGA,second*00" {
		t.Fatalf("frame=%q", got)
	}
	if _, err := f.Next(); err != io.EOF {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestFramer_UnterminatedLastLine(t *testing.T) {
	f := NewFramer(strings.NewReader("$GPGGA,tail*00"))
	got, err := f.Next()
	if err != nil || string(got) != "$GPGGA,tail*00" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := f.Next(); err != io.EOF {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestFramer_ClosedPipeIsEndOfStream(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte(sampleGGA + "\r\n"))
		pw.CloseWithError(io.ErrClosedPipe)
	}()
	f := NewFramer(pr)
	if _, err := f.Next(); err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if _, err := f.Next(); err != io.EOF {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestText_RejectsInvalidUTF8(t *testing.T) {
	if _, err := Text(RawFrame{'$', 0xff, 0xfe}); !errors.Is(err, ErrEncoding) {
		t.Fatalf("err=%v want ErrEncoding", err)
	}
	s, err := Text(RawFrame(sampleGGA))
	if err != nil || s != sampleGGA {
		t.Fatalf("Text()=%q, %v", s, err)
	}
}
