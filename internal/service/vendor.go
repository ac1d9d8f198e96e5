package service

import (
	"context"

	"atmeex_cloud/internal/atmeex"
	"atmeex_cloud/internal/models"
)

// DeviceProxy is the command surface of one device handle.
type DeviceProxy interface {
	Snapshot() models.DeviceSnapshot
	SetPower(ctx context.Context, on bool) error
	SetHeatTemp(ctx context.Context, temperature float64) error
	SetFanSpeed(ctx context.Context, speed int) error
}

// VendorClient is the part of the cloud client the coordinator and config flow use.
type VendorClient interface {
	GetDevices(ctx context.Context) ([]DeviceProxy, error)
	RestoreTokens(access, refresh string)
	Tokens() (access, refresh string)
}

// ClientFactory builds a vendor client for one account.
type ClientFactory func(email, password string) VendorClient

type atmeexClient struct {
	*atmeex.Client
}

func (c atmeexClient) GetDevices(ctx context.Context) ([]DeviceProxy, error) {
	devices, err := c.Client.GetDevices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceProxy, len(devices))
	for i, d := range devices {
		out[i] = d
	}
	return out, nil
}

// NewAtmeexClientFactory returns a factory producing real cloud clients.
func NewAtmeexClientFactory(cfg atmeex.Config) ClientFactory {
	return func(email, password string) VendorClient {
		return atmeexClient{Client: atmeex.NewClient(cfg, email, password)}
	}
}
