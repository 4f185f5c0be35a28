package hubitat

import (
	"fmt"
	"strings"
)

// enumText maps enum ordinals to canonical names. Index 0 is the zero value
// and is never valid.
type enumText []string

func (t enumText) name(v uint8) string {
	if int(v) < len(t) && v != 0 {
		return t[v]
	}
	return fmt.Sprintf("invalid(%d)", v)
}

// parse matches s case-insensitively against the canonical names and the
// optional aliases.
func (t enumText) parse(s string, aliases map[string]uint8) (uint8, bool) {
	for i := 1; i < len(t); i++ {
		if strings.EqualFold(s, t[i]) {
			return uint8(i), true
		}
	}
	for alias, v := range aliases {
		if strings.EqualFold(s, alias) {
			return v, true
		}
	}
	return 0, false
}

func (t enumText) unmarshal(kind string, text []byte) (uint8, error) {
	v, ok := t.parse(string(text), nil)
	if !ok {
		return 0, fmt.Errorf("hubitat: unknown %s %q", kind, text)
	}
	return v, nil
}

// TempUnit is a temperature scale.
type TempUnit uint8

const (
	Fahrenheit TempUnit = iota + 1
	Celsius
)

var tempUnitText = enumText{"", "°F", "°C"}

var tempUnitAliases = map[string]uint8{
	"F": uint8(Fahrenheit),
	"C": uint8(Celsius),
}

func (u TempUnit) String() string { return tempUnitText.name(uint8(u)) }

func (u TempUnit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *TempUnit) UnmarshalText(text []byte) error {
	v, err := tempUnitText.unmarshal("temperature unit", text)
	*u = TempUnit(v)
	return err
}

// PowerUnit is a unit of electrical power.
type PowerUnit uint8

const (
	Watt PowerUnit = iota + 1
)

var powerUnitText = enumText{"", "W"}

func (u PowerUnit) String() string { return powerUnitText.name(uint8(u)) }

func (u PowerUnit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *PowerUnit) UnmarshalText(text []byte) error {
	v, err := powerUnitText.unmarshal("power unit", text)
	*u = PowerUnit(v)
	return err
}

// PressureUnit is a unit of pressure.
type PressureUnit uint8

const (
	KiloPascal PressureUnit = iota + 1
	PSI
)

var pressureUnitText = enumText{"", "kPa", "PSI"}

func (u PressureUnit) String() string { return pressureUnitText.name(uint8(u)) }

func (u PressureUnit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *PressureUnit) UnmarshalText(text []byte) error {
	v, err := pressureUnitText.unmarshal("pressure unit", text)
	*u = PressureUnit(v)
	return err
}

// Presence reports whether a presence sensor sees its subject.
type Presence uint8

const (
	Present Presence = iota + 1
	NotPresent
)

var presenceText = enumText{"", "present", "not present"}

var presenceAliases = map[string]uint8{
	"notpresent":  uint8(NotPresent),
	"not_present": uint8(NotPresent),
}

func (p Presence) String() string { return presenceText.name(uint8(p)) }

func (p Presence) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Presence) UnmarshalText(text []byte) error {
	v, err := presenceText.unmarshal("presence", text)
	*p = Presence(v)
	return err
}

// DeviceStatus is a device's reachability.
type DeviceStatus uint8

const (
	Online DeviceStatus = iota + 1
	Offline
)

var deviceStatusText = enumText{"", "online", "offline"}

func (s DeviceStatus) String() string { return deviceStatusText.name(uint8(s)) }

func (s DeviceStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *DeviceStatus) UnmarshalText(text []byte) error {
	v, err := deviceStatusText.unmarshal("device status", text)
	*s = DeviceStatus(v)
	return err
}

// SwitchState is the position of a switch.
type SwitchState uint8

const (
	SwitchOn SwitchState = iota + 1
	SwitchOff
)

var switchStateText = enumText{"", "on", "off"}

func (s SwitchState) String() string { return switchStateText.name(uint8(s)) }

func (s SwitchState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SwitchState) UnmarshalText(text []byte) error {
	v, err := switchStateText.unmarshal("switch state", text)
	*s = SwitchState(v)
	return err
}

// OperatingState is what a thermostat is currently doing.
type OperatingState uint8

const (
	Idle OperatingState = iota + 1
	Cooling
	Heating
)

var operatingStateText = enumText{"", "idle", "cooling", "heating"}

func (s OperatingState) String() string { return operatingStateText.name(uint8(s)) }

func (s OperatingState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OperatingState) UnmarshalText(text []byte) error {
	v, err := operatingStateText.unmarshal("operating state", text)
	*s = OperatingState(v)
	return err
}
