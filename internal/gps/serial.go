package gps

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate is the u-blox factory default for NMEA output.
const DefaultBaudRate = 9600

// readPoll bounds how long a single port read blocks, so a closed port
// is noticed promptly.
const readPoll = 200 * time.Millisecond

// SerialProvider reads raw NMEA bytes from a UART GPS.
// Compatible with u-blox receivers and any standard NMEA GPS.
type SerialProvider struct {
	portPath string
	baudRate int
	log      *zap.SugaredLogger

	mu     sync.Mutex
	port   serial.Port
	closed atomic.Bool
}

// SerialConfig holds configuration for the serial provider.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewSerial creates a serial provider. Nothing is opened until Connect.
func NewSerial(cfg SerialConfig, log *zap.SugaredLogger) *SerialProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SerialProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		log:      log.With("component", "gps"),
	}
}

func (s *SerialProvider) Name() string { return "NMEA GPS (" + s.portPath + ")" }

func (s *SerialProvider) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrUnavailable, s.portPath, err)
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return fmt.Errorf("%w: set timeout on %s: %v", ErrUnavailable, s.portPath, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	s.closed.Store(false)
	s.log.Infof("connected to %s at %d baud", s.portPath, s.baudRate)
	return nil
}

func (s *SerialProvider) Close() error {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Read blocks until at least one byte arrives. Read timeouts on the port
// are absorbed here; a closed port ends the stream with io.EOF.
func (s *SerialProvider) Read(p []byte) (int, error) {
	for {
		if s.closed.Load() {
			return 0, io.EOF
		}
		s.mu.Lock()
		port := s.port
		s.mu.Unlock()
		if port == nil {
			return 0, fmt.Errorf("gps: not connected")
		}

		n, err := port.Read(p)
		if err != nil {
			var portErr *serial.PortError
			if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
				return n, io.EOF
			}
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// ListPorts returns the serial ports present on this machine, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("gps: list ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
