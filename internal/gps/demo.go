package gps

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
)

// DemoConfig shapes the simulated receiver.
type DemoConfig struct {
	Interval       time.Duration // Time between fixes, default 1s
	GroundAltitude float64       // Meters above the geoid at launch
	GroundFixes    int           // Fixes before the simulated climb starts
	Seed           int64
}

// DemoProvider simulates a u-blox receiver: a ground phase followed by a
// slow climb and descent, with the occasional lost fix and non-GGA traffic.
type DemoProvider struct {
	cfg   DemoConfig
	sleep func(time.Duration)

	mu     sync.Mutex
	rng    *rand.Rand
	buf    bytes.Buffer
	n      int
	start  time.Time
	closed bool
}

func NewDemo(cfg DemoConfig) *DemoProvider {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.GroundAltitude == 0 {
		cfg.GroundAltitude = 42.0
	}
	if cfg.GroundFixes <= 0 {
		cfg.GroundFixes = 60
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &DemoProvider{
		cfg:   cfg,
		sleep: time.Sleep,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		start: time.Now().UTC(),
	}
}

func (d *DemoProvider) Name() string { return "Demo GPS (Simulated)" }

func (d *DemoProvider) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = false
	return nil
}

func (d *DemoProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *DemoProvider) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.EOF
	}
	if d.buf.Len() == 0 {
		wait := d.n > 0
		d.mu.Unlock()
		if wait {
			d.sleep(d.cfg.Interval)
		}
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return 0, io.EOF
		}
		d.tick()
	}
	defer d.mu.Unlock()
	return d.buf.Read(p)
}

// tick appends one second worth of sentences to buf.
func (d *DemoProvider) tick() {
	d.n++
	ts := d.start.Add(time.Duration(d.n) * d.cfg.Interval).Format("150405.00")

	// Roughly one fix in twenty is lost.
	if d.rng.Intn(20) == 0 {
		d.emit(fmt.Sprintf("GPGGA,%s,,,,,0,00,99.99,,,,,,", ts))
	} else {
		sats := 7 + d.rng.Intn(6)
		quality := 1
		if d.rng.Intn(4) == 0 {
			quality = 2
		}
		d.emit(fmt.Sprintf("GPGGA,%s,5547.1234,N,01230.5678,E,%d,%02d,%.2f,%.1f,M,41.2,M,,",
			ts, quality, sats, 0.8+d.rng.Float64()*0.6, d.altitude()))
	}
	d.emit(fmt.Sprintf("GPRMC,%s,A,5547.1234,N,01230.5678,E,0.02,,%s,,,A",
		ts, d.start.Format("020106")))
}

func (d *DemoProvider) altitude() float64 {
	noise := d.rng.NormFloat64() * 0.8
	t := d.n - d.cfg.GroundFixes
	if t <= 0 {
		return d.cfg.GroundAltitude + noise
	}
	// Climb to ~50 m above ground and back over about two minutes.
	return d.cfg.GroundAltitude + 25*(1-math.Cos(float64(t)/20)) + noise
}

func (d *DemoProvider) emit(body string) {
	fmt.Fprintf(&d.buf, "$%s*%s\r\n", body, gonmea.Checksum(body))
}
