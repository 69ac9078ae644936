// Command simulator replays a CSV of sensor readings to a greenhouse's
// telemetry topic, emitting the device's single-quoted payload convention.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"greenhouse-monitor/internal/telemetry"
)

func main() {
	var (
		broker       string
		greenhouseID string
		csvPath      string
		interval     string
	)
	flag.StringVar(&broker, "broker", "tcp://127.0.0.1:1883", "MQTT broker URL")
	flag.StringVar(&greenhouseID, "greenhouse", "", "greenhouse id to publish as")
	flag.StringVar(&csvPath, "csv", "config/sample_data.csv", "path to CSV data file")
	flag.StringVar(&interval, "interval", "1s", "publish interval")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if greenhouseID == "" {
		log.Fatal().Msg("-greenhouse is required")
	}
	if err := run(broker, greenhouseID, csvPath, interval); err != nil {
		log.Fatal().Err(err).Msg("simulator exited")
	}
}

func run(broker, greenhouseID, csvPath, interval string) error {
	period, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	rows, err := loadCSV(csvPath)
	if err != nil {
		return fmt.Errorf("load csv: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topic := fmt.Sprintf("greenhouse/%s/data", greenhouseID)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("greenhouse-device-" + greenhouseID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", broker).Str("topic", topic).Msg("connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	defer client.Disconnect(250)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down simulator")
			return nil
		case <-ticker.C:
			s := rows[idx]
			idx = (idx + 1) % len(rows)

			payload := fmt.Sprintf("{'temperature':%g,'humidity':%g,'soilMoisture':%g,'ph':%g}",
				s.Temperature, s.Humidity, s.SoilMoisture, s.Ph)
			if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Error().Err(token.Error()).Msg("publish failed")
			}
		}
	}
}

func loadCSV(path string) ([]telemetry.SensorSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("csv must contain header and at least one data row")
	}

	cols := map[string]int{}
	for i, name := range records[0] {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"temperature", "humidity", "soilMoisture", "ph"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv missing column %s", required)
		}
	}

	parse := func(record []string, col string) (float64, error) {
		v := strings.TrimSpace(record[cols[col]])
		if v == "" {
			return 0, fmt.Errorf("empty value for column %s", col)
		}
		return strconv.ParseFloat(v, 64)
	}

	rows := make([]telemetry.SensorSample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(records[0]) {
			return nil, errors.New("csv record length mismatch")
		}
		var s telemetry.SensorSample
		if s.Temperature, err = parse(record, "temperature"); err != nil {
			return nil, err
		}
		if s.Humidity, err = parse(record, "humidity"); err != nil {
			return nil, err
		}
		if s.SoilMoisture, err = parse(record, "soilMoisture"); err != nil {
			return nil, err
		}
		if s.Ph, err = parse(record, "ph"); err != nil {
			return nil, err
		}
		rows = append(rows, s)
	}
	return rows, nil
}
