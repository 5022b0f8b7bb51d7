package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
	"github.com/ericogr/bme680-to-vscp/pkg/output/console"
	"github.com/ericogr/bme680-to-vscp/pkg/output/mqtt"
	"github.com/ericogr/bme680-to-vscp/pkg/output/vscp"
	"github.com/ericogr/bme680-to-vscp/pkg/publisher"
	"github.com/ericogr/bme680-to-vscp/pkg/sensor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	metricsNamespace = "bme680"
	metricsSubsystem = "publisher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bme680-to-vscp",
		Short:        "Publish BME680 measurements as VSCP events over MQTT or the VSCP tcp/ip interface",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.New()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, newLogger(os.Stderr, cfg.Verbose))
		},
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.BME680.PressureAdjust == config.AdjustLegacy {
		logger.Warn("pressure_adjust=legacy is deprecated, adjusted pressure uses p + h/8.3")
	}

	channels, err := buildChannels(cfg, measurement.HostMAC)
	if err != nil {
		return err
	}

	s, err := sensor.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	defer s.Close()

	sink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		counter, latency := output.MakeMetrics(metricsNamespace, metricsSubsystem)
		sink = output.MetricsMiddleware(sink, counter, latency)
		go serveMetrics(ctx, cfg.MetricsAddr, logger)
	}
	sink = output.LoggingMiddleware(sink, logger)
	defer sink.Close()

	logger.Info("Publishing measurements",
		slog.String("sink", cfg.Sink),
		slog.Bool("simulate", cfg.Simulate),
		slog.Int("channels", len(channels)),
		slog.Duration("interval", cfg.Interval),
		slog.String("policy", cfg.Policy),
	)

	p := publisher.New(s, sink, channels, publisher.StationFromConfig(cfg.BME680), cfg.Policy, logger)
	return p.Run(ctx, cfg.Interval)
}

// buildChannels resolves the configured channels. Without a configured GUID
// each channel GUID is derived from the host MAC address.
func buildChannels(cfg config.Config, hostMAC func() (net.HardwareAddr, error)) ([]measurement.Channel, error) {
	var base measurement.GUID
	var mac net.HardwareAddr
	var err error
	if cfg.GUID != "" {
		if base, err = measurement.ParseGUID(cfg.GUID); err != nil {
			return nil, err
		}
	} else if mac, err = hostMAC(); err != nil {
		return nil, fmt.Errorf("derive guid: %w", err)
	}

	channels := make([]measurement.Channel, 0, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		ch, ok := measurement.DefaultChannel(cc.Kind)
		if !ok {
			return nil, fmt.Errorf("invalid channel '%s'", cc.Kind)
		}
		ch.ID = cc.ID
		ch.SensorIndex = cc.SensorIndex
		ch.Zone = cfg.Zone
		ch.Subzone = cfg.Subzone
		if cc.Note != "" {
			ch.Note = cc.Note
		}
		if cfg.GUID != "" {
			ch.GUID = base.WithID(ch.ID)
		} else if ch.GUID, err = measurement.FromMAC(mac, ch.ID); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func newSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (output.Sink, error) {
	switch cfg.Sink {
	case config.SinkMQTT:
		m, err := mqtt.NewMQTT(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.SinkVSCP:
		v, err := vscp.NewVSCP(ctx, cfg.VSCP, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	case config.SinkConsole:
		return console.NewConsole(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", slog.Any("error", err))
	}
}
