package model

import "time"

// Greenhouse is a monitored site with one optional attached device.
// Threshold columns are nullable: a NULL bound means "no check for that side".
type Greenhouse struct {
	ID        string `gorm:"column:id;primaryKey" json:"id"`
	Name      string `gorm:"column:name" json:"name"`
	Location  string `gorm:"column:location" json:"location"`
	PlantType string `gorm:"column:plant_type" json:"plantType"`
	Status    string `gorm:"column:status;default:active" json:"status"`
	DeviceURL string `gorm:"column:device_url" json:"deviceUrl"`

	TemperatureMin  *float64 `gorm:"column:temperature_min" json:"temperatureMin"`
	TemperatureMax  *float64 `gorm:"column:temperature_max" json:"temperatureMax"`
	HumidityMin     *float64 `gorm:"column:humidity_min" json:"humidityMin"`
	HumidityMax     *float64 `gorm:"column:humidity_max" json:"humidityMax"`
	SoilMoistureMin *float64 `gorm:"column:soil_moisture_min" json:"soilMoistureMin"`
	SoilMoistureMax *float64 `gorm:"column:soil_moisture_max" json:"soilMoistureMax"`
	PhMin           *float64 `gorm:"column:ph_min" json:"phMin"`
	PhMax           *float64 `gorm:"column:ph_max" json:"phMax"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	StatSamples []StatSample `gorm:"foreignKey:GreenhouseID;references:ID" json:"-"`
	Alerts      []Alert      `gorm:"foreignKey:GreenhouseID;references:ID" json:"-"`
}

func (Greenhouse) TableName() string { return "greenhouses" }

// StatSample is one persisted snapshot of the four tracked metrics.
type StatSample struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GreenhouseID string    `gorm:"column:greenhouse_id;index" json:"greenhouseId"`
	Temperature  float64   `gorm:"column:temperature" json:"temperature"`
	Humidity     float64   `gorm:"column:humidity" json:"humidity"`
	SoilMoisture float64   `gorm:"column:soil_moisture" json:"soilMoisture"`
	Ph           float64   `gorm:"column:ph" json:"ph"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Greenhouse Greenhouse `gorm:"foreignKey:GreenhouseID;references:ID" json:"-"`
}

func (StatSample) TableName() string { return "greenhouse_stats" }

// Alert records one threshold breach.
// AlertType is one of: temperature, humidity, soilMoisture, ph.
type Alert struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	GreenhouseID string    `gorm:"column:greenhouse_id;index" json:"greenhouseId"`
	AlertType    string    `gorm:"column:alert_type" json:"alertType"`
	Title        string    `gorm:"column:title" json:"title"`
	Description  string    `gorm:"column:description" json:"description"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Greenhouse Greenhouse `gorm:"foreignKey:GreenhouseID;references:ID" json:"-"`
}

func (Alert) TableName() string { return "alerts" }
