package hubitat

import (
	"encoding/json"
	"time"
)

// PayloadKind names a payload variant. The names are part of the persisted
// format.
type PayloadKind string

const (
	KindDeviceBattery                  PayloadKind = "DeviceBattery"
	KindDeviceCoolingSetpoint          PayloadKind = "DeviceCoolingSetpoint"
	KindDeviceHumidity                 PayloadKind = "DeviceHumidity"
	KindDeviceLastCheckin              PayloadKind = "DeviceLastCheckin"
	KindDeviceLastCheckinEpoch         PayloadKind = "DeviceLastCheckinEpoch"
	KindDevicePower                    PayloadKind = "DevicePower"
	KindDevicePresence                 PayloadKind = "DevicePresence"
	KindDevicePressure                 PayloadKind = "DevicePressure"
	KindDeviceStatus                   PayloadKind = "DeviceStatus"
	KindDeviceSwitch                   PayloadKind = "DeviceSwitch"
	KindDeviceTemperature              PayloadKind = "DeviceTemperature"
	KindDeviceThermostatOperatingState PayloadKind = "DeviceThermostatOperatingState"
	KindDeviceThermostatSetpoint       PayloadKind = "DeviceThermostatSetpoint"
	KindLocationSunrise                PayloadKind = "LocationSunrise"
	KindLocationSunriseTime            PayloadKind = "LocationSunriseTime"
	KindLocationSunset                 PayloadKind = "LocationSunset"
	KindLocationSunsetTime             PayloadKind = "LocationSunsetTime"
)

// Payload is one of the closed set of decoded attribute variants. Only types
// in this package implement it.
type Payload interface {
	Kind() PayloadKind
	isPayload()
}

type DeviceBattery struct {
	Percent uint8 `json:"percent"`
}

type DeviceCoolingSetpoint struct {
	Value float32  `json:"value"`
	Unit  TempUnit `json:"unit"`
}

type DeviceHumidity struct {
	RH float32 `json:"rh"`
}

// DeviceLastCheckin carries a wall-clock time without zone information. It is
// stored with a UTC location but must not be read as a UTC instant.
type DeviceLastCheckin struct {
	At time.Time `json:"at"`
}

type DeviceLastCheckinEpoch struct {
	At time.Time `json:"at"`
}

type DevicePower struct {
	Value float32   `json:"value"`
	Unit  PowerUnit `json:"unit"`
}

type DevicePresence struct {
	Presence Presence `json:"presence"`
}

type DevicePressure struct {
	Pressure float32      `json:"pressure"`
	Unit     PressureUnit `json:"unit"`
}

type DeviceStatusChange struct {
	Status DeviceStatus `json:"status"`
}

type DeviceSwitch struct {
	State SwitchState `json:"state"`
}

type DeviceTemperature struct {
	Value float32  `json:"value"`
	Unit  TempUnit `json:"unit"`
}

type DeviceThermostatOperatingState struct {
	State OperatingState `json:"state"`
}

type DeviceThermostatSetpoint struct {
	Value float32  `json:"value"`
	Unit  TempUnit `json:"unit"`
}

type LocationSunrise struct {
	Value bool `json:"value"`
}

type LocationSunriseTime struct {
	At time.Time `json:"at"`
}

type LocationSunset struct {
	Value bool `json:"value"`
}

type LocationSunsetTime struct {
	At time.Time `json:"at"`
}

func (DeviceBattery) Kind() PayloadKind                  { return KindDeviceBattery }
func (DeviceCoolingSetpoint) Kind() PayloadKind          { return KindDeviceCoolingSetpoint }
func (DeviceHumidity) Kind() PayloadKind                 { return KindDeviceHumidity }
func (DeviceLastCheckin) Kind() PayloadKind              { return KindDeviceLastCheckin }
func (DeviceLastCheckinEpoch) Kind() PayloadKind         { return KindDeviceLastCheckinEpoch }
func (DevicePower) Kind() PayloadKind                    { return KindDevicePower }
func (DevicePresence) Kind() PayloadKind                 { return KindDevicePresence }
func (DevicePressure) Kind() PayloadKind                 { return KindDevicePressure }
func (DeviceStatusChange) Kind() PayloadKind             { return KindDeviceStatus }
func (DeviceSwitch) Kind() PayloadKind                   { return KindDeviceSwitch }
func (DeviceTemperature) Kind() PayloadKind              { return KindDeviceTemperature }
func (DeviceThermostatOperatingState) Kind() PayloadKind { return KindDeviceThermostatOperatingState }
func (DeviceThermostatSetpoint) Kind() PayloadKind       { return KindDeviceThermostatSetpoint }
func (LocationSunrise) Kind() PayloadKind                { return KindLocationSunrise }
func (LocationSunriseTime) Kind() PayloadKind            { return KindLocationSunriseTime }
func (LocationSunset) Kind() PayloadKind                 { return KindLocationSunset }
func (LocationSunsetTime) Kind() PayloadKind             { return KindLocationSunsetTime }

func (DeviceBattery) isPayload()                  {}
func (DeviceCoolingSetpoint) isPayload()          {}
func (DeviceHumidity) isPayload()                 {}
func (DeviceLastCheckin) isPayload()              {}
func (DeviceLastCheckinEpoch) isPayload()         {}
func (DevicePower) isPayload()                    {}
func (DevicePresence) isPayload()                 {}
func (DevicePressure) isPayload()                 {}
func (DeviceStatusChange) isPayload()             {}
func (DeviceSwitch) isPayload()                   {}
func (DeviceTemperature) isPayload()              {}
func (DeviceThermostatOperatingState) isPayload() {}
func (DeviceThermostatSetpoint) isPayload()       {}
func (LocationSunrise) isPayload()                {}
func (LocationSunriseTime) isPayload()            {}
func (LocationSunset) isPayload()                 {}
func (LocationSunsetTime) isPayload()             {}

// Event is a successfully decoded hub message.
type Event struct {
	// ObservedAt is when the decoder accepted the message, not any time
	// reported by the hub.
	ObservedAt time.Time
	DeviceName string
	DeviceID   uint32
	HubID      uint32
	Payload    Payload
}

// MarshalJSON renders the event for human-readable exports.
func (e Event) MarshalJSON() ([]byte, error) {
	var kind PayloadKind
	if e.Payload != nil {
		kind = e.Payload.Kind()
	}
	return json.Marshal(struct {
		ObservedAt time.Time   `json:"observed_at"`
		DeviceName string      `json:"device_name"`
		DeviceID   uint32      `json:"device_id"`
		HubID      uint32      `json:"hub_id"`
		Kind       PayloadKind `json:"kind"`
		Payload    Payload     `json:"payload"`
	}{e.ObservedAt, e.DeviceName, e.DeviceID, e.HubID, kind, e.Payload})
}
