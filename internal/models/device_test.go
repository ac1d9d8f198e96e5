package models

import "testing"

func TestDeriveHVACMode(t *testing.T) {
	cases := []struct {
		name     string
		powerOn  bool
		roomTemp float64
		want     HVACMode
	}{
		{"off ignores target", false, 22, HVACModeOff},
		{"off with fan only target", false, FanOnlyTemperature, HVACModeOff},
		{"positive target heats", true, 22, HVACModeHeat},
		{"small positive target heats", true, 0.5, HVACModeHeat},
		{"zero target is fan only", true, 0, HVACModeFanOnly},
		{"sentinel is fan only", true, FanOnlyTemperature, HVACModeFanOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveHVACMode(tc.powerOn, tc.roomTemp); got != tc.want {
				t.Fatalf("DeriveHVACMode(%v, %v) = %q, want %q", tc.powerOn, tc.roomTemp, got, tc.want)
			}
			s := DeviceSnapshot{PowerOn: tc.powerOn, RoomTemperature: tc.roomTemp}
			if got := s.Mode(); got != tc.want {
				t.Fatalf("Mode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHVACModeValid(t *testing.T) {
	for _, m := range HVACModes {
		if !m.Valid() {
			t.Fatalf("%q should be valid", m)
		}
	}
	for _, m := range []HVACMode{"", "cool", "auto", "HEAT"} {
		if m.Valid() {
			t.Fatalf("%q should be invalid", m)
		}
	}
}

func TestConfigEntryTokensDiffer(t *testing.T) {
	e := ConfigEntry{AccessToken: "a", RefreshToken: "r"}
	if e.TokensDiffer("a", "r") {
		t.Fatal("same tokens reported as different")
	}
	if !e.TokensDiffer("a2", "r") || !e.TokensDiffer("a", "r2") {
		t.Fatal("changed token not detected")
	}
}
