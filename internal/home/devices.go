// Package home simulates the devices behind the capability server: one light,
// one thermostat and one door lock, plus a bounded event log.
package home

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Device ids as exposed to the agent.
const (
	LightID      = "living_room_light"
	ThermostatID = "thermostat"
	DoorID       = "front_door"
)

type Light struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"-"`
	State      string `json:"state" yaml:"state"`
	Brightness int    `json:"brightness" yaml:"brightness"`
}

type Thermostat struct {
	Name              string  `json:"name" yaml:"name"`
	Type              string  `json:"type" yaml:"-"`
	Temperature       float64 `json:"temperature" yaml:"temperature"`
	TargetTemperature float64 `json:"target_temperature" yaml:"target_temperature"`
}

type Lock struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"-"`
	State string `json:"state" yaml:"state"`
}

// Devices is the full device table. Field order is the listing order.
type Devices struct {
	Light      Light      `json:"living_room_light" yaml:"living_room_light"`
	Thermostat Thermostat `json:"thermostat" yaml:"thermostat"`
	FrontDoor  Lock       `json:"front_door" yaml:"front_door"`
}

// DefaultDevices returns the built-in initial states.
func DefaultDevices() Devices {
	return Devices{
		Light:      Light{Name: "Living Room Light", Type: "light", State: "off", Brightness: 50},
		Thermostat: Thermostat{Name: "Home Thermostat", Type: "thermostat", Temperature: 22.0, TargetTemperature: 22.0},
		FrontDoor:  Lock{Name: "Front Door Lock", Type: "lock", State: "locked"},
	}
}

// LoadDevices reads a YAML seed file over the defaults. Fields absent from the
// file keep their default values.
func LoadDevices(path string) (Devices, error) {
	d := DefaultDevices()
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read device seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse device seed %s: %w", path, err)
	}
	if err := d.validate(); err != nil {
		return d, fmt.Errorf("device seed %s: %w", path, err)
	}
	return d, nil
}

func (d Devices) validate() error {
	switch d.Light.State {
	case "on", "off":
	default:
		return &ValidationError{Field: "living_room_light.state", Message: fmt.Sprintf("Light state must be on or off, got %q", d.Light.State)}
	}
	if d.Light.Brightness < 0 || d.Light.Brightness > 100 {
		return &ValidationError{Field: "living_room_light.brightness", Message: "Brightness must be between 0 and 100"}
	}
	switch d.FrontDoor.State {
	case "locked", "unlocked":
	default:
		return &ValidationError{Field: "front_door.state", Message: fmt.Sprintf("Lock state must be locked or unlocked, got %q", d.FrontDoor.State)}
	}
	return nil
}

// name resolves a device id to its display name, or the id itself when the
// id names no device (scene entries use "scene_control").
func (d Devices) name(id string) string {
	switch id {
	case LightID:
		return d.Light.Name
	case ThermostatID:
		return d.Thermostat.Name
	case DoorID:
		return d.FrontDoor.Name
	}
	return id
}

// Listing renders the human-readable device summary returned by list_devices.
func (d Devices) Listing() string {
	var b strings.Builder
	b.WriteString("📱 Home Devices Status:\n\n")

	fmt.Fprintf(&b, "🔹 %s (%s)\n", d.Light.Name, LightID)
	fmt.Fprintf(&b, "   State: %s\n", d.Light.State)
	fmt.Fprintf(&b, "   Brightness: %d%%\n\n", d.Light.Brightness)

	fmt.Fprintf(&b, "🔹 %s (%s)\n", d.Thermostat.Name, ThermostatID)
	fmt.Fprintf(&b, "   Current: %s°C\n", formatDegrees(d.Thermostat.Temperature))
	fmt.Fprintf(&b, "   Target: %s°C\n\n", formatDegrees(d.Thermostat.TargetTemperature))

	fmt.Fprintf(&b, "🔹 %s (%s)\n", d.FrontDoor.Name, DoorID)
	fmt.Fprintf(&b, "   State: %s\n\n", d.FrontDoor.State)
	return b.String()
}

// formatDegrees prints a temperature with at least one decimal place
// (22 -> "22.0", 22.6 -> "22.6").
func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
