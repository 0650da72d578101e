package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recorder writes timestamped altitude rows to CSV files with automatic
// rotation.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	session string
	maxRows int
	log     *zap.SugaredLogger
	now     func() time.Time

	file   *os.File
	writer *csv.Writer
	rows   int
	path   string
}

// RecorderConfig holds recorder configuration.
type RecorderConfig struct {
	Dir     string
	Session string // Run identifier written into every row
	MaxRows int    // Rows per file before rotating
}

// Row is one CSV line. Relative is only meaningful when Phase is "flight".
type Row struct {
	Phase      string // "base" or "flight"
	Quality    int
	Label      string
	Satellites int
	Altitude   float64
	Relative   float64
	GPSTime    string
	Latitude   float64
	Longitude  float64
}

const defaultMaxRows = 100_000 // ~28 hrs at 1 Hz

var csvHeader = []string{
	"timestamp", "session", "phase", "gps_time",
	"quality", "quality_label", "satellites",
	"altitude_m", "relative_m",
	"latitude", "longitude",
}

// NewRecorder creates a Recorder. Files are created lazily on the first row.
func NewRecorder(cfg RecorderConfig, log *zap.SugaredLogger) *Recorder {
	if cfg.Dir == "" {
		cfg.Dir = "logs/readings"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{
		dir:     cfg.Dir,
		session: cfg.Session,
		maxRows: cfg.MaxRows,
		log:     log.With("component", "recorder"),
		now:     time.Now,
	}
}

// Record appends one row, rotating the file if needed.
func (r *Recorder) Record(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.writer == nil || r.rows >= r.maxRows {
		if err := r.rotateFile(now); err != nil {
			return fmt.Errorf("recorder: rotate: %w", err)
		}
	}

	if err := r.writer.Write(r.buildRow(now, row)); err != nil {
		return fmt.Errorf("recorder: write: %w", err)
	}
	r.writer.Flush()
	r.rows++
	return r.writer.Error()
}

// Path returns the file currently being written, if any.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Close flushes and closes the current file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	filename := fmt.Sprintf("relalt_%s.csv", now.Format("2006-01-02_150405.000"))
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0
	r.path = path

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	r.log.Infof("opened %s", path)
	return nil
}

func (r *Recorder) closeFile() error {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func (r *Recorder) buildRow(ts time.Time, row Row) []string {
	out := make([]string, len(csvHeader))
	out[0] = ts.Format(time.RFC3339Nano)
	out[1] = r.session
	out[2] = row.Phase
	out[3] = row.GPSTime
	out[4] = strconv.Itoa(row.Quality)
	out[5] = row.Label
	out[6] = strconv.Itoa(row.Satellites)
	out[7] = fmt.Sprintf("%.2f", row.Altitude)
	if row.Phase == "flight" {
		out[8] = fmt.Sprintf("%.2f", row.Relative)
	}
	out[9] = strconv.FormatFloat(row.Latitude, 'f', 6, 64)
	out[10] = strconv.FormatFloat(row.Longitude, 'f', 6, 64)
	return out
}
