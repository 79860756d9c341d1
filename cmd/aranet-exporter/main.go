// Command aranet-exporter polls an Aranet4 and exposes its readings as Prometheus metrics,
// optionally publishing them to MQTT and storing them in SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/cli"
	"github.com/sensorlink/aranet4/pkg/metrics"
)

const (
	defaultMetricsAddress = ":9101"
	reconnectDelay        = 10 * time.Second
)

func main() {
	var (
		pollInterval time.Duration
		pollTimeout  time.Duration
		connTimeout  time.Duration
		jsonLogs     bool
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	flag.DurationVar(&pollInterval, "poll", time.Minute, "Time between sensor reads")
	flag.DurationVar(&pollTimeout, "poll-timeout", 15*time.Second, "Timeout for each sensor read")
	flag.DurationVar(&connTimeout, "connect-timeout", 30*time.Second, "Timeout for finding and connecting to the sensor")
	flag.BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()

	if jsonLogs {
		log.SetOutput(os.Stderr, log.FormatJSON)
	}
	log.SetLevel(log.LevelInfo)
	if config.Verbose {
		log.SetLevel(log.LevelDebug)
	}
	if config.MetricsAddress == "" {
		config.MetricsAddress = defaultMetricsAddress
	}

	if err := config.LoadCredentials(); err != nil {
		log.Error("Error loading credentials: %s", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, pollInterval, pollTimeout, connTimeout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Exporter failed: %s", err)
		os.Exit(1)
	}
	log.Info("Shutting down")
}

func run(ctx context.Context, config *cli.Config, interval, pollTimeout, connTimeout time.Duration) error {
	collector, err := metrics.New()
	if err != nil {
		return err
	}

	p := &poller{metrics: collector, now: time.Now}

	if config.DatabasePath != "" {
		db, err := config.OpenStore()
		if err != nil {
			return err
		}
		defer db.Close()
		p.store = db
	}
	if config.MQTTBroker != "" {
		connectCtx, cancel := context.WithTimeout(ctx, connTimeout)
		publisher, err := config.NewPublisher(connectCtx)
		cancel()
		if err != nil {
			log.Warning("MQTT connection failed (continuing without MQTT): %s", err)
		} else {
			defer publisher.Disconnect()
			p.publisher = publisher
		}
	}

	ln, err := net.Listen("tcp", config.MetricsAddress)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The sensor loop stops when the metrics server does.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		log.Info("Serving metrics on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("metrics server stopped: %w", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warning("HTTP shutdown: %s", err)
		}
	}()

	for {
		err := pollSensor(ctx, config, p, interval, pollTimeout, connTimeout)
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		log.Warning("Sensor connection ended: %s; reconnecting in %s", err, reconnectDelay)

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(reconnectDelay):
		}
	}
}

func pollSensor(ctx context.Context, config *cli.Config, p *poller, interval, pollTimeout, connTimeout time.Duration) error {
	connectCtx, cancel := context.WithTimeout(ctx, connTimeout)
	s, conn, err := config.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer config.Close()

	p.sensor = s
	p.id = conn.Address()
	return p.run(ctx, interval, pollTimeout)
}
