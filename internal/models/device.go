package models

// FanOnlyTemperature is the heating target the vendor API reads as "no heating, fan only".
const FanOnlyTemperature = -1000.0

// HVACMode is the derived operating mode of a climate device.
type HVACMode string

const (
	HVACModeOff     HVACMode = "off"
	HVACModeHeat    HVACMode = "heat"
	HVACModeFanOnly HVACMode = "fan_only"
)

// HVACModes lists the modes a climate entity accepts, in display order.
var HVACModes = []HVACMode{HVACModeHeat, HVACModeFanOnly, HVACModeOff}

// Valid reports whether m is one of the supported modes.
func (m HVACMode) Valid() bool {
	switch m {
	case HVACModeOff, HVACModeHeat, HVACModeFanOnly:
		return true
	}
	return false
}

// DeviceSnapshot is the read model of one device as last reported by the cloud.
type DeviceSnapshot struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Online             bool    `json:"online"`
	PowerOn            bool    `json:"power_on"`
	RoomTemperature    float64 `json:"room_temperature"` // heating target; FanOnlyTemperature when not heating
	FanSpeed           int     `json:"fan_speed"`        // 0..6
	CurrentTemperature float64 `json:"current_temperature"`
	Humidity           float64 `json:"humidity"`
}

// Mode derives the operating mode from the power flag and the heating target.
func (s DeviceSnapshot) Mode() HVACMode {
	return DeriveHVACMode(s.PowerOn, s.RoomTemperature)
}

// DeriveHVACMode maps raw device fields to a mode.
func DeriveHVACMode(powerOn bool, roomTemperature float64) HVACMode {
	switch {
	case !powerOn:
		return HVACModeOff
	case roomTemperature > 0:
		return HVACModeHeat
	default:
		return HVACModeFanOnly
	}
}
