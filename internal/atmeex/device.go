package atmeex

import (
	"context"

	"atmeex_cloud/internal/models"
)

type deviceResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	Settings struct {
		PowerOn         bool    `json:"u_pwr_on"`
		RoomTemperature float64 `json:"u_temp_room"`
		FanSpeed        int     `json:"u_fan_speed"`
	} `json:"settings"`
	Condition struct {
		Temperature float64 `json:"temp_room"`
		Humidity    float64 `json:"hum_room"`
	} `json:"condition"`
}

func (d deviceResponse) toDevice(c *Client) *Device {
	return &Device{
		client: c,
		model: models.DeviceSnapshot{
			ID:                 d.ID,
			Name:               d.Name,
			Online:             d.Online,
			PowerOn:            d.Settings.PowerOn,
			RoomTemperature:    d.Settings.RoomTemperature,
			FanSpeed:           d.Settings.FanSpeed,
			CurrentTemperature: d.Condition.Temperature,
			Humidity:           d.Condition.Humidity,
		},
	}
}

// Device is a handle to one vendor device as returned by the latest listing.
type Device struct {
	client *Client
	model  models.DeviceSnapshot
}

// Snapshot returns the read model captured when the device was listed.
func (d *Device) Snapshot() models.DeviceSnapshot {
	return d.model
}

// SetPower switches the device on or off.
func (d *Device) SetPower(ctx context.Context, on bool) error {
	return d.client.setParams(ctx, d.model.ID, map[string]any{"u_pwr_on": on})
}

// SetHeatTemp sets the heating target. models.FanOnlyTemperature disables heating.
func (d *Device) SetHeatTemp(ctx context.Context, temperature float64) error {
	return d.client.setParams(ctx, d.model.ID, map[string]any{"u_temp_room": temperature})
}

// SetFanSpeed sets the zero-based fan speed (0..6).
func (d *Device) SetFanSpeed(ctx context.Context, speed int) error {
	return d.client.setParams(ctx, d.model.ID, map[string]any{"u_fan_speed": speed})
}
