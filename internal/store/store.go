package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"greenhouse-monitor/internal/model"
	"greenhouse-monitor/internal/telemetry"
)

var (
	// ErrNotFound marks a greenhouse that does not exist.
	ErrNotFound = errors.New("greenhouse not found")
	// ErrNoDeviceURL marks a greenhouse with no attached device endpoint.
	// It satisfies errors.Is against ErrNotFound.
	ErrNoDeviceURL = fmt.Errorf("%w: no device url", ErrNotFound)
)

// Store is the sqlite-backed registry and threshold source for the pipeline,
// and the write target for stat samples and alerts.
type Store struct {
	orm *gorm.DB
}

// Open opens the SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	g, err := openORM(path)
	if err != nil {
		return nil, err
	}
	if err := migrateORM(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &Store{orm: g}, nil
}

func (s *Store) Close() error { return closeORM(s.orm) }

// CreateGreenhouse inserts a greenhouse, assigning an id and active status
// when absent. Thresholds start unset: no metric is checked until a manager
// configures bounds.
func (s *Store) CreateGreenhouse(ctx context.Context, g *model.Greenhouse) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = "active"
	}
	return s.orm.WithContext(ctx).Create(g).Error
}

func (s *Store) GetGreenhouse(ctx context.Context, id string) (*model.Greenhouse, error) {
	var g model.Greenhouse
	if err := s.orm.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// UpdateThresholds replaces all eight bounds in one write. A nil side clears
// that bound.
func (s *Store) UpdateThresholds(ctx context.Context, id string, th telemetry.Thresholds) error {
	if _, err := s.GetGreenhouse(ctx, id); err != nil {
		return err
	}
	updates := map[string]any{
		"temperature_min":   th.Temperature.Min,
		"temperature_max":   th.Temperature.Max,
		"humidity_min":      th.Humidity.Min,
		"humidity_max":      th.Humidity.Max,
		"soil_moisture_min": th.SoilMoisture.Min,
		"soil_moisture_max": th.SoilMoisture.Max,
		"ph_min":            th.Ph.Min,
		"ph_max":            th.Ph.Max,
	}
	return s.orm.WithContext(ctx).Model(&model.Greenhouse{}).Where("id = ?", id).Updates(updates).Error
}

// GetDeviceEndpoint resolves the greenhouse's device transport address.
func (s *Store) GetDeviceEndpoint(ctx context.Context, id string) (string, error) {
	g, err := s.GetGreenhouse(ctx, id)
	if err != nil {
		return "", err
	}
	if g.DeviceURL == "" {
		return "", ErrNoDeviceURL
	}
	return g.DeviceURL, nil
}

// GetThresholds reads the current persisted configuration. Called per
// message, so threshold updates apply to the next sample of a live
// subscription.
func (s *Store) GetThresholds(ctx context.Context, id string) (telemetry.Thresholds, error) {
	g, err := s.GetGreenhouse(ctx, id)
	if err != nil {
		return telemetry.Thresholds{}, err
	}
	return telemetry.Thresholds{
		Temperature:  telemetry.Bound{Min: g.TemperatureMin, Max: g.TemperatureMax},
		Humidity:     telemetry.Bound{Min: g.HumidityMin, Max: g.HumidityMax},
		SoilMoisture: telemetry.Bound{Min: g.SoilMoistureMin, Max: g.SoilMoistureMax},
		Ph:           telemetry.Bound{Min: g.PhMin, Max: g.PhMax},
	}, nil
}

// SaveStatSample inserts one persisted snapshot of the four metrics.
func (s *Store) SaveStatSample(ctx context.Context, greenhouseID string, sample telemetry.SensorSample) error {
	row := model.StatSample{
		GreenhouseID: greenhouseID,
		Temperature:  sample.Temperature,
		Humidity:     sample.Humidity,
		SoilMoisture: sample.SoilMoisture,
		Ph:           sample.Ph,
	}
	return s.orm.WithContext(ctx).Create(&row).Error
}

// SaveAlert records one threshold breach.
func (s *Store) SaveAlert(ctx context.Context, evt telemetry.AlertEvent) error {
	row := model.Alert{
		ID:           uuid.NewString(),
		GreenhouseID: evt.GreenhouseID,
		AlertType:    evt.Metric,
		Title:        fmt.Sprintf("%s threshold breached", evt.Metric),
		Description:  evt.Message,
		CreatedAt:    evt.Timestamp,
	}
	return s.orm.WithContext(ctx).Create(&row).Error
}

// ListStatSamples returns the most recent samples for a greenhouse, newest
// first. limit <= 0 returns all.
func (s *Store) ListStatSamples(ctx context.Context, greenhouseID string, limit int) ([]model.StatSample, error) {
	q := s.orm.WithContext(ctx).
		Where("greenhouse_id = ?", greenhouseID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.StatSample
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
