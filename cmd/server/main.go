package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"greenhouse-monitor/internal/api"
	"greenhouse-monitor/internal/config"
	"greenhouse-monitor/internal/device"
	"greenhouse-monitor/internal/store"
	"greenhouse-monitor/internal/telemetry"
	"greenhouse-monitor/internal/ws"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "path to YAML config")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(configPath); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.System.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.System.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(cfg.Websocket.SendBuffer)
	go hub.Run(ctx)

	overrides := telemetry.NewOverrides()
	persister := telemetry.NewPersister(st, cfg.Telemetry.SampleIntervalDuration, cfg.Telemetry.PersistQueueSize)
	defer persister.Close()

	pipeline := telemetry.NewPipeline(st, overrides, persister, hub)

	dialer := &device.MQTTDialer{
		ClientID:    cfg.MQTT.ClientID,
		KeepAlive:   cfg.MQTT.KeepAliveDuration,
		PingTimeout: cfg.MQTT.PingTimeoutDuration,
	}
	manager := device.NewManager(st, dialer, pipeline)
	defer manager.DisconnectAll()

	handler := api.NewHandler(st, manager, overrides, hub)
	srv := &http.Server{
		Addr:    cfg.System.ListenAddress,
		Handler: api.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", cfg.System.ListenAddress).Msg("server listening")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
