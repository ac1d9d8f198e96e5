package models

import "time"

// Display limits of a climate entity.
const (
	ClimateMinTemp        = 10.0
	ClimateMaxTemp        = 30.0
	ClimateTargetTempStep = 0.5
	ClimateUnit           = "°C"
	ClimateIcon           = "mdi:air-purifier"
	MinFanLevel           = 1
	MaxFanLevel           = 7
)

// FanModes are the display values of the fan speed, one-based.
var FanModes = []string{"1", "2", "3", "4", "5", "6", "7"}

// ClimateState is what a climate entity displays.
type ClimateState struct {
	EntityID           string     `json:"entity_id"`
	EntryID            string     `json:"entry_id"`
	DeviceID           int64      `json:"device_id"`
	Name               string     `json:"name"`
	Available          bool       `json:"available"`
	HVACMode           HVACMode   `json:"hvac_mode"`
	HVACModes          []HVACMode `json:"hvac_modes"`
	TargetTemperature  float64    `json:"target_temperature"`
	CurrentTemperature float64    `json:"current_temperature"`
	Humidity           float64    `json:"humidity"`
	FanMode            string     `json:"fan_mode"`
	FanModes           []string   `json:"fan_modes"`
	MinTemp            float64    `json:"min_temp"`
	MaxTemp            float64    `json:"max_temp"`
	TargetTempStep     float64    `json:"target_temp_step"`
	Unit               string     `json:"unit"`
	Icon               string     `json:"icon"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
