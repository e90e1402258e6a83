package home

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"
)

// Temperature bounds accepted by SetTemperature.
const (
	MinTemperature = 16.0
	MaxTemperature = 30.0
)

// recentEventCount is how many log entries the status resource carries.
const recentEventCount = 5

// Home owns the device table and the event log. All methods are safe for
// concurrent use.
type Home struct {
	mu      sync.Mutex
	devices Devices
	events  *EventLog
	now     func() time.Time
}

type Option func(*Home)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Home) { h.now = now }
}

// WithEventCapacity overrides the event log capacity.
func WithEventCapacity(n int) Option {
	return func(h *Home) { h.events = NewEventLog(n) }
}

func New(devices Devices, opts ...Option) *Home {
	h := &Home{
		devices: devices,
		events:  NewEventLog(EventLogCapacity),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.devices.Light.Type = "light"
	h.devices.Thermostat.Type = "thermostat"
	h.devices.FrontDoor.Type = "lock"
	return h
}

// Devices returns a copy of the current device table.
func (h *Home) Devices() Devices {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.devices
}

// Events returns the retained event log, oldest first.
func (h *Home) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events.Entries()
}

func (h *Home) logEvent(deviceID, action string) {
	h.events.Append(h.now(), h.devices.name(deviceID), action)
}

// ListDevices renders every device and its state.
func (h *Home) ListDevices() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.devices.Listing()
}

// ControlLight switches the light and optionally sets its brightness first.
// A brightness of 0 forces the light off whatever the action.
func (h *Home) ControlLight(action string, brightness *int) (string, error) {
	switch action {
	case "on", "off", "toggle":
	default:
		return "", &ValidationError{Field: "action", Message: "Action must be one of on, off or toggle"}
	}
	if brightness != nil && (*brightness < 0 || *brightness > 100) {
		return "", &ValidationError{Field: "brightness", Message: "Brightness must be between 0 and 100"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	light := &h.devices.Light
	if brightness != nil {
		light.Brightness = *brightness
	}
	switch action {
	case "on":
		light.State = "on"
	case "off":
		light.State = "off"
	case "toggle":
		if light.State == "off" {
			light.State = "on"
		} else {
			light.State = "off"
		}
	}
	if brightness != nil && *brightness == 0 {
		light.State = "off"
	}

	logAction := "Light turned " + light.State
	msg := "✅ Living Room Light is now " + light.State
	if light.State == "on" {
		logAction += fmt.Sprintf(" at %d%%", light.Brightness)
		msg += fmt.Sprintf(" at %d%% brightness", light.Brightness)
	}
	h.logEvent(LightID, logAction)
	return msg, nil
}

// SetTemperature sets the thermostat target. The current temperature moves a
// fifth of the way towards it, rounded to one decimal.
func (h *Home) SetTemperature(target float64) (string, error) {
	if math.IsNaN(target) || target < MinTemperature || target > MaxTemperature {
		return "", &ValidationError{Field: "target_temperature", Message: "Temperature must be between 16°C and 30°C"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	th := &h.devices.Thermostat
	old := th.TargetTemperature
	th.TargetTemperature = target
	th.Temperature = round1(th.Temperature + (target-th.Temperature)*0.2)

	h.logEvent(ThermostatID, fmt.Sprintf("Temperature set to %s°C", formatDegrees(target)))
	return fmt.Sprintf("🌡️ Thermostat set to %s°C (was %s°C)\nCurrent temperature: %s°C",
		formatDegrees(target), formatDegrees(old), formatDegrees(th.Temperature)), nil
}

// ControlDoorLock locks or unlocks the front door.
func (h *Home) ControlDoorLock(action string) (string, error) {
	var state string
	switch action {
	case "lock":
		state = "locked"
	case "unlock":
		state = "unlocked"
	default:
		return "", &ValidationError{Field: "action", Message: "Action must be lock or unlock"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.devices.FrontDoor.State = state
	h.logEvent(DoorID, "Door "+state)
	return "🚪 Front door is now " + state, nil
}

// ActivateScene applies a preset to every device and records a single event.
func (h *Home) ActivateScene(name string) (string, error) {
	sc, ok := lookupScene(name)
	if !ok {
		return "", &ValidationError{Field: "scene", Message: fmt.Sprintf("Unknown scene %q. Choose one of: %s", name, sceneNames())}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sc.apply(&h.devices)
	h.logEvent(SceneControlID, fmt.Sprintf("Scene '%s' activated", sc.Name))
	return sc.summary(), nil
}

// Status is the payload of the home://device_status resource.
type Status struct {
	Devices      Devices `json:"devices"`
	LastUpdated  string  `json:"last_updated"`
	RecentEvents []Event `json:"recent_events"`
}

func (h *Home) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		Devices:      h.devices,
		LastUpdated:  h.now().Format("2006-01-02T15:04:05.000000"),
		RecentEvents: h.events.Recent(recentEventCount),
	}
}

// StatusJSON renders Status as indented JSON.
func (h *Home) StatusJSON() (string, error) {
	b, err := json.MarshalIndent(h.Status(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal device status: %w", err)
	}
	return string(b), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
