// Package hubitat decodes Hubitat Elevation event messages into typed events.
//
// A hub pushes one JSON object per event over its /eventsocket websocket (or
// to a webhook). Each message names a (source, name) attribute pair and
// carries the attribute's value as a string. Decode maps the pair onto one of
// a closed set of payload variants, parsing the string fields into typed
// values. Messages that do not map cleanly are rejected whole.
package hubitat

// Message sources.
const (
	SourceDevice   = "DEVICE"
	SourceLocation = "LOCATION"
)

// DTO is the raw wire shape of one hub event. Field names follow the hub's
// camelCase JSON convention.
type DTO struct {
	Source          string `json:"source"`
	Name            string `json:"name"`
	DisplayName     string `json:"displayName"`
	Value           string `json:"value"`
	Unit            string `json:"unit"`
	DeviceID        uint32 `json:"deviceId"`
	HubID           uint32 `json:"hubId"`
	InstalledAppID  uint32 `json:"installedAppId"`
	DescriptionText string `json:"descriptionText"`
}

// dtoWire mirrors DTO with pointer fields so that absent and null keys can be
// told apart from zero values. Every field is required.
type dtoWire struct {
	Source          *string `json:"source"`
	Name            *string `json:"name"`
	DisplayName     *string `json:"displayName"`
	Value           *string `json:"value"`
	Unit            *string `json:"unit"`
	DeviceID        *uint32 `json:"deviceId"`
	HubID           *uint32 `json:"hubId"`
	InstalledAppID  *uint32 `json:"installedAppId"`
	DescriptionText *string `json:"descriptionText"`
}

// dto returns the complete message, or a malformed *DecodeError naming the
// first required field that is missing or null.
func (w *dtoWire) dto() (DTO, error) {
	var d DTO
	if w.Source != nil {
		d.Source = *w.Source
	}
	if w.Name != nil {
		d.Name = *w.Name
	}
	required := []struct {
		field   string
		present bool
	}{
		{"source", w.Source != nil},
		{"name", w.Name != nil},
		{"displayName", w.DisplayName != nil},
		{"value", w.Value != nil},
		{"unit", w.Unit != nil},
		{"deviceId", w.DeviceID != nil},
		{"hubId", w.HubID != nil},
		{"installedAppId", w.InstalledAppID != nil},
		{"descriptionText", w.DescriptionText != nil},
	}
	for _, r := range required {
		if !r.present {
			return DTO{}, &DecodeError{
				Kind:   ErrMalformed,
				Source: d.Source,
				Name:   d.Name,
				Field:  r.field,
				Err:    errMissingField,
			}
		}
	}
	d.DisplayName = *w.DisplayName
	d.Value = *w.Value
	d.Unit = *w.Unit
	d.DeviceID = *w.DeviceID
	d.HubID = *w.HubID
	d.InstalledAppID = *w.InstalledAppID
	d.DescriptionText = *w.DescriptionText
	return d, nil
}
