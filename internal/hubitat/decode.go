package hubitat

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// LastCheckinLayout is the fixed format of DEVICE/lastCheckin values.
const LastCheckinLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

type shapeKey struct {
	source string
	name   string
}

type shape struct {
	kind   PayloadKind
	decode func(d *DTO) (Payload, error)
}

// shapes is the complete mapping from (source, name) to payload variant.
// Pairs not listed here are rejected with ErrUnknownShape.
var shapes = map[shapeKey]shape{
	{SourceDevice, "battery"}: {KindDeviceBattery, func(d *DTO) (Payload, error) {
		v, err := parseUint8(d)
		return DeviceBattery{Percent: v}, err
	}},
	{SourceDevice, "coolingSetpoint"}: {KindDeviceCoolingSetpoint, func(d *DTO) (Payload, error) {
		v, u, err := parseTemperature(d)
		return DeviceCoolingSetpoint{Value: v, Unit: u}, err
	}},
	{SourceDevice, "humidity"}: {KindDeviceHumidity, func(d *DTO) (Payload, error) {
		v, err := parseFloat32(d)
		return DeviceHumidity{RH: v}, err
	}},
	{SourceDevice, "lastCheckin"}: {KindDeviceLastCheckin, func(d *DTO) (Payload, error) {
		at, err := time.Parse(LastCheckinLayout, strings.TrimSpace(d.Value))
		if err != nil {
			return nil, fieldError(d, ErrParseTimestamp, "value", d.Value, err)
		}
		return DeviceLastCheckin{At: at}, nil
	}},
	{SourceDevice, "lastCheckinEpoch"}: {KindDeviceLastCheckinEpoch, func(d *DTO) (Payload, error) {
		secs, err := strconv.ParseInt(strings.TrimSpace(d.Value), 10, 64)
		if err != nil {
			return nil, fieldError(d, ErrParseInt, "value", d.Value, err)
		}
		at := time.Unix(secs, 0).UTC()
		if at.Year() < 0 || at.Year() > 9999 {
			return nil, fieldError(d, ErrParseTimestamp, "value", d.Value, errEpochRange)
		}
		return DeviceLastCheckinEpoch{At: at}, nil
	}},
	{SourceDevice, "power"}: {KindDevicePower, func(d *DTO) (Payload, error) {
		v, err := parseFloat32(d)
		if err != nil {
			return nil, err
		}
		u, ok := powerUnitText.parse(strings.TrimSpace(d.Unit), nil)
		if !ok {
			return nil, fieldError(d, ErrParseUnit, "unit", d.Unit, nil)
		}
		return DevicePower{Value: v, Unit: PowerUnit(u)}, nil
	}},
	{SourceDevice, "presence"}: {KindDevicePresence, func(d *DTO) (Payload, error) {
		v, err := parseEnum(d, presenceText, presenceAliases)
		return DevicePresence{Presence: Presence(v)}, err
	}},
	{SourceDevice, "pressure"}: {KindDevicePressure, func(d *DTO) (Payload, error) {
		v, err := parseFloat32(d)
		if err != nil {
			return nil, err
		}
		u, ok := pressureUnitText.parse(strings.TrimSpace(d.Unit), nil)
		if !ok {
			return nil, fieldError(d, ErrParseUnit, "unit", d.Unit, nil)
		}
		return DevicePressure{Pressure: v, Unit: PressureUnit(u)}, nil
	}},
	{SourceDevice, "status"}: {KindDeviceStatus, func(d *DTO) (Payload, error) {
		v, err := parseEnum(d, deviceStatusText, nil)
		return DeviceStatusChange{Status: DeviceStatus(v)}, err
	}},
	{SourceDevice, "switch"}: {KindDeviceSwitch, func(d *DTO) (Payload, error) {
		v, err := parseEnum(d, switchStateText, nil)
		return DeviceSwitch{State: SwitchState(v)}, err
	}},
	{SourceDevice, "temperature"}: {KindDeviceTemperature, func(d *DTO) (Payload, error) {
		v, u, err := parseTemperature(d)
		return DeviceTemperature{Value: v, Unit: u}, err
	}},
	{SourceDevice, "thermostatOperatingState"}: {KindDeviceThermostatOperatingState, func(d *DTO) (Payload, error) {
		v, err := parseEnum(d, operatingStateText, nil)
		return DeviceThermostatOperatingState{State: OperatingState(v)}, err
	}},
	{SourceDevice, "thermostatSetpoint"}: {KindDeviceThermostatSetpoint, func(d *DTO) (Payload, error) {
		v, u, err := parseTemperature(d)
		return DeviceThermostatSetpoint{Value: v, Unit: u}, err
	}},
	{SourceLocation, "sunrise"}: {KindLocationSunrise, func(d *DTO) (Payload, error) {
		v, err := parseBool(d)
		return LocationSunrise{Value: v}, err
	}},
	{SourceLocation, "sunriseTime"}: {KindLocationSunriseTime, func(d *DTO) (Payload, error) {
		at, err := parseTimestamp(d)
		return LocationSunriseTime{At: at}, err
	}},
	{SourceLocation, "sunset"}: {KindLocationSunset, func(d *DTO) (Payload, error) {
		v, err := parseBool(d)
		return LocationSunset{Value: v}, err
	}},
	{SourceLocation, "sunsetTime"}: {KindLocationSunsetTime, func(d *DTO) (Payload, error) {
		at, err := parseTimestamp(d)
		return LocationSunsetTime{At: at}, err
	}},
}

// Decoder turns hub messages into typed events. It is stateless apart from
// its clock and safe for concurrent use.
type Decoder struct {
	now func() time.Time
}

// NewDecoder returns a decoder stamping events with now. A nil now uses
// time.Now.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// DecodeRaw parses a JSON message and decodes it. Every DTO field must be
// present and non-null; a missing one rejects the message as malformed.
func (d *Decoder) DecodeRaw(data []byte) (Event, error) {
	var wire dtoWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{}, &DecodeError{Kind: ErrMalformed, Err: err}
	}
	dto, err := wire.dto()
	if err != nil {
		return Event{}, err
	}
	return d.Decode(dto)
}

// Decode maps dto onto its payload variant. Either every field the variant
// needs parses, or the whole message is rejected with a *DecodeError.
func (d *Decoder) Decode(dto DTO) (Event, error) {
	sh, ok := shapes[shapeKey{dto.Source, dto.Name}]
	if !ok {
		return Event{}, &DecodeError{Kind: ErrUnknownShape, Source: dto.Source, Name: dto.Name}
	}
	payload, err := sh.decode(&dto)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ObservedAt: d.now().UTC(),
		DeviceName: dto.DisplayName,
		DeviceID:   dto.DeviceID,
		HubID:      dto.HubID,
		Payload:    payload,
	}, nil
}

// Known reports whether (source, name) maps to a payload variant.
func Known(source, name string) bool {
	_, ok := shapes[shapeKey{source, name}]
	return ok
}

func fieldError(d *DTO, kind error, field, value string, err error) *DecodeError {
	return &DecodeError{
		Kind:   kind,
		Source: d.Source,
		Name:   d.Name,
		Field:  field,
		Value:  value,
		Err:    err,
	}
}

func parseUint8(d *DTO) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(d.Value), 10, 8)
	if err != nil {
		return 0, fieldError(d, ErrParseInt, "value", d.Value, unwrapNum(err))
	}
	return uint8(v), nil
}

func parseFloat32(d *DTO) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 32)
	if err != nil {
		return 0, fieldError(d, ErrParseFloat, "value", d.Value, unwrapNum(err))
	}
	return float32(v), nil
}

func parseBool(d *DTO) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(d.Value))
	if err != nil {
		return false, fieldError(d, ErrParseBool, "value", d.Value, unwrapNum(err))
	}
	return v, nil
}

func parseTemperature(d *DTO) (float32, TempUnit, error) {
	v, err := parseFloat32(d)
	if err != nil {
		return 0, 0, err
	}
	u, ok := tempUnitText.parse(strings.TrimSpace(d.Unit), tempUnitAliases)
	if !ok {
		return 0, 0, fieldError(d, ErrParseUnit, "unit", d.Unit, nil)
	}
	return v, TempUnit(u), nil
}

func parseEnum(d *DTO, text enumText, aliases map[string]uint8) (uint8, error) {
	v, ok := text.parse(strings.TrimSpace(d.Value), aliases)
	if !ok {
		return 0, fieldError(d, ErrParseEnum, "value", d.Value, nil)
	}
	return v, nil
}

func parseTimestamp(d *DTO) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		at, err := time.Parse(layout, strings.TrimSpace(d.Value))
		if err == nil {
			return at.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fieldError(d, ErrParseTimestamp, "value", d.Value, lastErr)
}

// unwrapNum strips strconv's *NumError wrapper, whose message repeats the
// input already carried by DecodeError.Value.
func unwrapNum(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}
