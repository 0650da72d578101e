package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shaunagostinho/relalt/internal/config"
	"github.com/shaunagostinho/relalt/internal/gps"
	"github.com/shaunagostinho/relalt/internal/logger"
	"github.com/shaunagostinho/relalt/internal/output"
	"github.com/shaunagostinho/relalt/internal/pipeline"
	"github.com/shaunagostinho/relalt/internal/server"
	"github.com/shaunagostinho/relalt/web"
)

const (
	exitOK        = 0
	exitConfig    = 1
	exitTransport = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(code)
}

type flags struct {
	configPath string
	port       string
	baseN      int
	demo       bool
	list       bool
	listen     string
	mqtt       string
	csv        bool
	init       bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, map[string]bool, error) {
	fs := flag.NewFlagSet("relalt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "relalt.yaml", "Path to config file")
	fs.StringVar(&f.port, "p", "", "Serial port to listen on (e.g. /dev/ttyACM0 or COM3)")
	fs.IntVar(&f.baseN, "g", 0, "Number of readings for ground altitude")
	fs.BoolVar(&f.demo, "demo", false, "Run with a simulated receiver")
	fs.BoolVar(&f.list, "list", false, "List serial ports and exit")
	fs.StringVar(&f.listen, "listen", "", "Serve the live view on this address (e.g. :8080)")
	fs.StringVar(&f.mqtt, "mqtt", "", "Publish readings to this MQTT broker (e.g. tcp://localhost:1883)")
	fs.BoolVar(&f.csv, "csv", false, "Record readings as CSV")
	fs.BoolVar(&f.init, "init", false, "Write the effective config to -config and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *config.Config, f *flags, set map[string]bool) {
	if set["p"] {
		cfg.GPS.Type = "serial"
		cfg.GPS.PortPath = f.port
	}
	if set["g"] {
		cfg.Calibration.BaseSamples = f.baseN
	}
	if f.demo {
		cfg.GPS.Type = "demo"
	}
	if f.listen != "" {
		cfg.Server.Enabled = true
		cfg.Server.ListenAddr = f.listen
	}
	if f.mqtt != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = f.mqtt
	}
	if f.csv {
		cfg.Logging.CSVEnabled = true
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	f, set, err := parseFlags(args, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitConfig
	}

	if f.list {
		ports, err := gps.ListPorts()
		if err != nil {
			fmt.Fprintf(stdout, "Error: %v\n", err)
			return exitTransport
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return exitOK
	}

	cfg, err := config.Load(f.configPath, nil)
	if err == nil {
		applyFlags(cfg, f, set)
		err = cfg.Validate()
	}
	if err != nil {
		reportFatal(stdout, err)
		return exitConfig
	}

	if f.init {
		if err := cfg.Save(f.configPath); err != nil {
			reportFatal(stdout, err)
			return exitConfig
		}
		fmt.Fprintf(stdout, "wrote %s\n", f.configPath)
		return exitOK
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Console: stdout,
	})
	if err != nil {
		reportFatal(stdout, err)
		return exitConfig
	}
	defer lg.Close()
	log := lg.SugaredLogger

	session := uuid.NewString()
	log.Debugw("relalt starting", "session", session, "config", cfg.Path(), "log", lg.Path)

	logSink := output.NewLogSink(log)
	sinks := output.Fanout{logSink}

	prov, err := newProvider(cfg, stdin, stdout, log)
	if err != nil {
		logSink.Handle(pipeline.Fatal{Err: err})
		return exitTransport
	}

	if cfg.Logging.CSVEnabled {
		csvSink := output.NewCSVSink(logger.NewRecorder(logger.RecorderConfig{
			Dir:     cfg.Logging.CSVPath,
			Session: session,
		}, log), log)
		defer csvSink.Close()
		sinks = append(sinks, csvSink)
	}

	if cfg.Server.Enabled {
		metrics := output.NewMetrics()
		srv := server.New(server.Config{
			ListenAddr: cfg.Server.ListenAddr,
			Session:    session,
			Metrics:    metrics.Handler(),
		}, web.FS, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Errorf("live view stopped: %v", err)
			}
		}()
		sinks = append(sinks, srv, metrics)
	}

	if cfg.MQTT.Enabled {
		mq, err := output.DialMQTT(output.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Session:  session,
		}, log)
		if err != nil {
			log.Warnf("MQTT disabled: %v", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}

	p, err := pipeline.New(prov, pipeline.Options{
		BaseSamples: cfg.Calibration.BaseSamples,
		Policy:      cfg.Policy(),
		Validator:   cfg.Validator(),
	}, sinks)
	if err != nil {
		logSink.Handle(pipeline.Fatal{Err: err})
		return exitConfig
	}

	if err := prov.Connect(); err != nil {
		logSink.Handle(pipeline.Fatal{Err: fmt.Errorf("could not connect to %s: %w", prov.Name(), err)})
		return exitTransport
	}
	log.Infof("Listening on %s", prov.Name())

	// Close unblocks a pending read; the pipeline then sees end of stream
	// or the cancelled context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		prov.Close()
	}()

	err = p.Run(ctx)
	st := p.Stats()
	log.Debugw("stream ended", "frames", st.Frames, "base", st.Base, "readings", st.Readings)
	if err != nil && !errors.Is(err, context.Canceled) {
		logSink.Handle(pipeline.Fatal{Err: err})
		return exitTransport
	}
	return exitOK
}

func newProvider(cfg *config.Config, stdin io.Reader, stdout io.Writer, log *zap.SugaredLogger) (gps.Provider, error) {
	if cfg.GPS.Type == "demo" {
		return gps.NewDemo(gps.DemoConfig{}), nil
	}

	port := cfg.GPS.PortPath
	if port == "" {
		ports, err := gps.ListPorts()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gps.ErrUnavailable, err)
		}
		log.Info("Listing available serial ports:")
		for _, p := range ports {
			log.Info(p)
		}
		port, err = selectPort(stdin, stdout, ports)
		if err != nil {
			return nil, err
		}
	}
	return gps.NewSerial(gps.SerialConfig{PortPath: port, BaudRate: cfg.GPS.BaudRate}, log), nil
}

// selectPort asks for a port. The answer may be a port name or its
// 1-based position in ports. With exactly one port, ENTER accepts it.
func selectPort(in io.Reader, out io.Writer, ports []string) (string, error) {
	if len(ports) == 1 {
		fmt.Fprintf(out, "\nSpecify serial port to use or press ENTER to use %s: ", ports[0])
	} else {
		fmt.Fprint(out, "\nSpecify serial port to use: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read port choice: %v", gps.ErrUnavailable, err)
	}
	answer := strings.TrimSpace(line)

	switch {
	case answer == "" && len(ports) == 1:
		return ports[0], nil
	case answer == "":
		return "", fmt.Errorf("%w: no port selected", gps.ErrUnavailable)
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(ports) {
			return "", fmt.Errorf("%w: no port number %d", gps.ErrUnavailable, n)
		}
		return ports[n-1], nil
	}
	return answer, nil
}

// reportFatal prints a fatal error before the logger is configured.
func reportFatal(w io.Writer, err error) {
	lg, lerr := logger.New(logger.Config{Level: logger.InfoLevel, Console: w})
	if lerr != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	defer lg.Close()
	output.NewLogSink(lg.SugaredLogger).Handle(pipeline.Fatal{Err: err})
}
