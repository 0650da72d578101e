package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/nmea"
)

type recorder struct {
	events []Event
}

func (r *recorder) Handle(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) readings() []altitude.Report {
	var out []altitude.Report
	for _, ev := range r.events {
		if rd, ok := ev.(Reading); ok {
			out = append(out, rd.Report)
		}
	}
	return out
}

func (r *recorder) count(match func(Event) bool) int {
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func gga(quality int, alt string) string {
	return nmea.Format("GPGGA,123519,4807.038,N,01131.000,E," + string(rune('0'+quality)) + ",08,0.9," + alt + ",M,46.9,M,,")
}

func stream(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")
}

func defaultOptions(n int) Options {
	return Options{BaseSamples: n, Policy: altitude.DefaultPolicy()}
}

func TestNew_RejectsSingleSampleBeforeReading(t *testing.T) {
	src := &countingReader{}
	_, err := New(src, defaultOptions(1), nil)
	if !errors.Is(err, altitude.ErrTargetTooSmall) {
		t.Fatalf("err=%v want ErrTargetTooSmall", err)
	}
	if src.reads != 0 {
		t.Fatalf("source was read %d times", src.reads)
	}
}

type countingReader struct{ reads int }

func (c *countingReader) Read([]byte) (int, error) {
	c.reads++
	return 0, io.EOF
}

func TestRun_CalibratesThenReports(t *testing.T) {
	rec := &recorder{}
	src := stream(
		gga(1, "100.0"),
		"$GPXXX,123519,4807.038,N*00",
		gga(0, "999.0"),
		gga(2, "102.0"),
		"$GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00*74",
		gga(1, "101.0"),
		gga(1, "103.5"),
		gga(1, "99.0"),
	)
	p, err := New(src, defaultOptions(3), rec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	b, ok := p.Baseline()
	if !ok || b.Mean != 101.0 {
		t.Fatalf("baseline=%+v ok=%v want mean 101", b, ok)
	}

	got := rec.readings()
	if len(got) != 2 {
		t.Fatalf("readings=%d want 2", len(got))
	}
	if got[0].Relative != 2.5 || got[1].Relative != -2.0 {
		t.Fatalf("relative=%v,%v want 2.5,-2", got[0].Relative, got[1].Relative)
	}

	ready := rec.count(func(ev Event) bool { _, ok := ev.(BaselineReady); return ok })
	if ready != 1 {
		t.Fatalf("BaselineReady emitted %d times", ready)
	}
	progress := rec.count(func(ev Event) bool { _, ok := ev.(CalibrationProgress); return ok })
	if progress != 3 {
		t.Fatalf("CalibrationProgress emitted %d times want 3", progress)
	}

	st := p.Stats()
	if st.Frames != 8 || st.Base != 3 || st.Readings != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if st.Count(KindNotGGA) != 2 || st.Count(KindNoFix) != 1 {
		t.Fatalf("not_gga=%d no_fix=%d", st.Count(KindNotGGA), st.Count(KindNoFix))
	}
}

func TestRun_RejectedFramesDoNotAdvanceCalibration(t *testing.T) {
	good := gga(1, "50.0")
	corrupt := good[:len(good)-1] + "0"
	if corrupt == good {
		corrupt = good[:len(good)-1] + "1"
	}
	rec := &recorder{}
	src := stream(
		good,
		corrupt,
		string([]byte{'$', 'G', 'P', 0xff, 0xfe}),
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
		nmea.Format("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,,M,46.9,M,,"),
	)
	p, err := New(src, defaultOptions(2), rec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if _, ok := p.Baseline(); ok {
		t.Fatalf("calibration completed from rejected frames")
	}
	st := p.Stats()
	if st.Base != 1 {
		t.Fatalf("base=%d want 1", st.Base)
	}
	for k, want := range map[Kind]int{KindChecksumMismatch: 1, KindEncoding: 1, KindMalformed: 1, KindDecode: 1} {
		if got := st.Count(k); got != want {
			t.Fatalf("%s=%d want %d", k, got, want)
		}
	}
}

func TestRun_AcceptAllPolicyUsesNoFix(t *testing.T) {
	rec := &recorder{}
	src := stream(gga(0, "10.0"), gga(0, "20.0"), gga(0, "17.25"))
	p, err := New(src, Options{BaseSamples: 2, Policy: altitude.AcceptAll()}, rec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := rec.readings()
	if len(got) != 1 || got[0].Relative != 2.25 || got[0].Label != "No fix" {
		t.Fatalf("readings=%+v", got)
	}
}

func TestRun_NoFixWithEmptyFieldsIsNoFix(t *testing.T) {
	noFix := []string{
		nmea.Format("GPGGA,123520,,,,,0,00,99.99,,,,,,"),
		nmea.Format("GPGGA,,,,,,0,,,,,,,,"),
	}
	for name, policy := range map[string]altitude.Policy{
		"default":    altitude.DefaultPolicy(),
		"accept_all": altitude.AcceptAll(),
	} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			p, err := New(stream(noFix...), Options{BaseSamples: 2, Policy: policy}, rec)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			st := p.Stats()
			if st.Count(KindNoFix) != 2 || st.Count(KindDecode) != 0 || st.Base != 0 {
				t.Fatalf("no_fix=%d decode=%d base=%d", st.Count(KindNoFix), st.Count(KindDecode), st.Base)
			}
		})
	}
}

func TestRun_UnitMismatchWarnsButUsesValue(t *testing.T) {
	rec := &recorder{}
	src := stream(
		nmea.Format("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,30.0,F,46.9,M,,"),
		gga(1, "32.0"),
	)
	p, err := New(src, defaultOptions(2), rec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	b, ok := p.Baseline()
	if !ok || b.Mean != 31.0 {
		t.Fatalf("baseline=%+v ok=%v", b, ok)
	}
	if p.Stats().Count(KindUnitMismatch) != 1 {
		t.Fatalf("unit mismatch count=%d", p.Stats().Count(KindUnitMismatch))
	}
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := 0
	sink := SinkFunc(func(ev Event) {
		if _, ok := ev.(CalibrationProgress); ok {
			lines++
			if lines == 2 {
				cancel()
			}
		}
	})
	src := stream(gga(1, "1.0"), gga(1, "2.0"), gga(1, "3.0"), gga(1, "4.0"))
	p, err := New(src, defaultOptions(10), sink)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() err=%v want context.Canceled", err)
	}
	if p.Stats().Frames != 2 {
		t.Fatalf("frames=%d want 2", p.Stats().Frames)
	}
}

func TestRun_TransportErrorsAreRecovered(t *testing.T) {
	r := &flakyReader{
		steps: []string{gga(1, "5.0") + "\r\n", "", gga(1, "7.0") + "\r\n"},
	}
	rec := &recorder{}
	p, err := New(r, defaultOptions(2), rec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if b, ok := p.Baseline(); !ok || b.Mean != 6.0 {
		t.Fatalf("baseline=%+v ok=%v", b, ok)
	}
	if p.Stats().Count(KindTransportRead) != 1 {
		t.Fatalf("transport errors=%d want 1", p.Stats().Count(KindTransportRead))
	}
}

// flakyReader returns each step; an empty step is a read error.
type flakyReader struct {
	steps []string
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if len(f.steps) == 0 {
		return 0, io.EOF
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	if s == "" {
		return 0, errors.New("usb hiccup")
	}
	return copy(p, s), nil
}

func TestKind_String(t *testing.T) {
	if KindChecksumMismatch.String() != "checksum_mismatch" || Kind(99).String() != "unknown" {
		t.Fatalf("unexpected kind names")
	}
}
