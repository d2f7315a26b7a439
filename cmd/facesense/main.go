// facesense - landmark ingest service that counts blinks and mouth opens
// and streams per-face metrics over HTTP, WebSocket and MQTT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-facesense/internal/config"
	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/debug"
	"github.com/teslashibe/go-facesense/pkg/emitter"
	"github.com/teslashibe/go-facesense/pkg/expression"
	"github.com/teslashibe/go-facesense/pkg/pipeline"
	"github.com/teslashibe/go-facesense/pkg/web"
)

const statsInterval = 30 * time.Second

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.InitWith(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	debug.Enabled = cfg.Debug

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("facesense stopped", "error", err)
		os.Exit(1)
	}
	log.Info("goodbye")
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (config.Config, error) {
	path := flag.String("config", "", "Path to YAML config file")
	port := flag.String("port", "", "HTTP port (overrides config)")
	mode := flag.String("mode", "", "Subject mode: per_subject or shared")
	broker := flag.String("mqtt", "", "MQTT broker host:port (empty disables)")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	metricsFlag := flag.Bool("debug-metrics", false, "Log EAR/MAR/pose for every face on every tick")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}

	if *port != "" {
		cfg.Port = *port
	}
	if *mode != "" {
		cfg.SubjectMode = expression.Mode(*mode)
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *debugFlag {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	debug.Metrics = *metricsFlag

	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	machine, err := expression.NewMachine(cfg.Thresholds)
	if err != nil {
		return err
	}
	tracker := expression.NewTracker(machine, cfg.SubjectMode)
	processor := pipeline.New(tracker)

	log.Info("facesense starting",
		"port", cfg.Port,
		"mode", tracker.Mode(),
		"eye_close", cfg.Thresholds.EyeClose,
		"eye_open", cfg.Thresholds.EyeOpen,
		"mouth_open", cfg.Thresholds.MouthOpen,
	)

	var em *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		em = emitter.New(cfg.MQTT)
		defer em.Close()
		if err := em.Connect(ctx); err != nil {
			return err
		}
		processor.AddSink(em)
	} else {
		log.Info("mqtt disabled")
	}

	server := web.NewServer(web.Config{Port: cfg.Port, StatusRate: cfg.StatusRate}, processor)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		reportStats(ctx, processor, server, em)
		return nil
	})
	return g.Wait()
}

// reportStats logs service counters until ctx is done.
func reportStats(ctx context.Context, p *pipeline.Processor, s *web.Server, em *emitter.MQTTEmitter) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, ticks := p.Last()
			args := []any{
				"ticks", ticks,
				"subjects", p.Tracker().Len(),
				"status_clients", s.StatusHub().ClientCount(),
				"status_dropped", s.StatusHub().Dropped(),
			}
			if em != nil {
				st := em.Stats()
				args = append(args, "mqtt_connected", st.Connected, "mqtt_errors", st.Errors)
			}
			log.Info("stats", args...)
		}
	}
}
