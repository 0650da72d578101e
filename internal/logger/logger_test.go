package logger

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	return rows
}

func TestRecorder_WritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(RecorderConfig{Dir: dir, Session: "run-1"}, nil)
	if err := r.Record(Row{Phase: "base", Quality: 1, Label: "GPS", Satellites: 8, Altitude: 545.4, GPSTime: "123519", Latitude: 48.1173, Longitude: -11.516667}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := r.Record(Row{Phase: "flight", Quality: 2, Label: "DGPS", Satellites: 9, Altitude: 547.9, Relative: 2.5}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	path := r.Path()
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][1] != "run-1" || rows[1][2] != "base" || rows[1][7] != "545.40" || rows[1][8] != "" {
		t.Fatalf("base row=%v", rows[1])
	}
	if rows[1][9] != "48.117300" || rows[1][10] != "-11.516667" {
		t.Fatalf("base position=%v", rows[1][9:])
	}
	if rows[2][5] != "DGPS" || rows[2][8] != "2.50" {
		t.Fatalf("flight row=%v", rows[2])
	}
}

func TestRecorder_Rotates(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(RecorderConfig{Dir: dir, MaxRows: 2}, nil)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	for i := 0; i < 5; i++ {
		if err := r.Record(Row{Phase: "flight"}); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	r.Close()

	files, err := filepath.Glob(filepath.Join(dir, "relalt_*.csv"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files=%d want 3", len(files))
	}
}

func TestNew_TeesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	l, err := New(Config{Level: "info", Dir: dir, Console: &console})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	l.Debugf("hidden")
	l.Infof("Ground altitude average set to %.2f m", 101.0)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if !strings.Contains(console.String(), "Ground altitude average set to 101.00 m") {
		t.Fatalf("console=%q", console.String())
	}
	if strings.Contains(console.String(), "hidden") {
		t.Fatalf("debug line leaked at info level")
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "Ground altitude average set to 101.00 m") {
		t.Fatalf("log file=%q", data)
	}
}

func TestNew_NoDirMeansConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	l, err := New(Config{Level: "debug", Console: &console})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer l.Close()
	if l.Path != "" {
		t.Fatalf("path=%q want empty", l.Path)
	}
	l.Debugf("visible")
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("console=%q", console.String())
	}
}
