package hubitat

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/hubtrail/internal/codec"
)

// eventWire is the persisted envelope. The payload is stored separately so
// that its kind can select the concrete type before decoding.
type eventWire struct {
	ObservedAt time.Time        `cbor:"observed_at"`
	DeviceName string           `cbor:"device_name"`
	DeviceID   uint32           `cbor:"device_id"`
	HubID      uint32           `cbor:"hub_id"`
	Kind       PayloadKind      `cbor:"kind"`
	Payload    codec.RawMessage `cbor:"payload"`
}

var payloadDecoders = map[PayloadKind]func([]byte) (Payload, error){
	KindDeviceBattery:                  decodeAs[DeviceBattery],
	KindDeviceCoolingSetpoint:          decodeAs[DeviceCoolingSetpoint],
	KindDeviceHumidity:                 decodeAs[DeviceHumidity],
	KindDeviceLastCheckin:              decodeAs[DeviceLastCheckin],
	KindDeviceLastCheckinEpoch:         decodeAs[DeviceLastCheckinEpoch],
	KindDevicePower:                    decodeAs[DevicePower],
	KindDevicePresence:                 decodeAs[DevicePresence],
	KindDevicePressure:                 decodeAs[DevicePressure],
	KindDeviceStatus:                   decodeAs[DeviceStatusChange],
	KindDeviceSwitch:                   decodeAs[DeviceSwitch],
	KindDeviceTemperature:              decodeAs[DeviceTemperature],
	KindDeviceThermostatOperatingState: decodeAs[DeviceThermostatOperatingState],
	KindDeviceThermostatSetpoint:       decodeAs[DeviceThermostatSetpoint],
	KindLocationSunrise:                decodeAs[LocationSunrise],
	KindLocationSunriseTime:            decodeAs[LocationSunriseTime],
	KindLocationSunset:                 decodeAs[LocationSunset],
	KindLocationSunsetTime:             decodeAs[LocationSunsetTime],
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var v T
	if err := codec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalEvent encodes ev as deterministic CBOR for storage.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, fmt.Errorf("hubitat: marshal event: nil payload")
	}
	payload, err := codec.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("hubitat: marshal %s payload: %w", ev.Payload.Kind(), err)
	}
	data, err := codec.Marshal(eventWire{
		ObservedAt: ev.ObservedAt,
		DeviceName: ev.DeviceName,
		DeviceID:   ev.DeviceID,
		HubID:      ev.HubID,
		Kind:       ev.Payload.Kind(),
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("hubitat: marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalEvent decodes bytes produced by MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var w eventWire
	if err := codec.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("hubitat: unmarshal event: %w", err)
	}
	decode, ok := payloadDecoders[w.Kind]
	if !ok {
		return Event{}, fmt.Errorf("hubitat: unmarshal event: unknown payload kind %q", w.Kind)
	}
	payload, err := decode(w.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("hubitat: unmarshal %s payload: %w", w.Kind, err)
	}
	return Event{
		ObservedAt: w.ObservedAt,
		DeviceName: w.DeviceName,
		DeviceID:   w.DeviceID,
		HubID:      w.HubID,
		Payload:    payload,
	}, nil
}
