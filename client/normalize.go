package client

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Placeholder is shown for a canonical string field the server left out
const Placeholder = "—"

// Alias tables. Keys are tried in order and the first present value wins.
// A dotted key descends into nested objects.
var (
	accessTokenKeys  = []string{"accessToken", "access_token", "token", "access", "tokens.accessToken", "tokens.access_token"}
	refreshTokenKeys = []string{"refreshToken", "refresh_token", "refresh", "tokens.refreshToken", "tokens.refresh_token"}
	userBlobKeys     = []string{"user", "nurse", "profile"}

	patientListKeys = []string{"patients", "data", "results"}

	patientIDKeys   = []string{"id", "_id", "patientId", "patient_id"}
	patientNameKeys = []string{"name", "fullName", "full_name", "patientName", "patient_name"}
	patientRoomKeys = []string{"room", "roomNumber", "room_number", "bed"}
	lastVitalsKeys  = []string{"lastVitals", "last_vitals", "latestVitals"}
	lastSeenKeys    = []string{"lastSeen", "last_seen"}

	heartRateKeys    = []string{"hr", "heartRate", "heart_rate"}
	spo2Keys         = []string{"spo2", "spO2", "SpO2", "SPO2"}
	tempCelsiusKeys  = []string{"temp", "temperature", "tempC", "temperature_c"}
	tempFahrenheitKs = []string{"tempF", "temperature_f"}

	profileNameKeys     = []string{"fullName", "name"}
	profileFacilityKeys = []string{"facility", "facilityName", "hospital", "organization"}
	profileEmailKeys    = []string{"email", "username"}
	profileNurseIDKeys  = []string{"nurseId", "id", "nurse_id"}
	profileShiftKeys    = []string{"shiftPreference", "shift"}
)

// millisThreshold separates epoch seconds from epoch milliseconds
const millisThreshold = 1e12

// lookup resolves a possibly dotted key in obj
func lookup(obj map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = obj
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// firstPresent returns the first value under keys that exists and is not null
func firstPresent(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := lookup(obj, k); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstString returns the first non-empty string under keys
func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := lookup(obj, k); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractTokens pulls whichever tokens a login or refresh payload carries
func ExtractTokens(body any) TokenPair {
	obj, _ := body.(map[string]any)
	return TokenPair{
		AccessToken:  firstString(obj, accessTokenKeys),
		RefreshToken: firstString(obj, refreshTokenKeys),
	}
}

// extractUser returns the user display blob from a login payload, if any
func extractUser(body any) (json.RawMessage, error) {
	obj, _ := body.(map[string]any)
	v, ok := firstPresent(obj, userBlobKeys)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// Vitals is the most recent set of readings for a patient. Temp is always
// Celsius. Timestamp is epoch seconds.
type Vitals struct {
	HR        *float64 `json:"hr"`
	SpO2      *float64 `json:"spo2"`
	Temp      *float64 `json:"temp"`
	Timestamp *int64   `json:"timestamp"`
}

// Patient is the canonical patient record
type Patient struct {
	// ID is a string or json.Number, nil if the server sent none
	ID       any    `json:"id"`
	Name     string `json:"name"`
	Room     string `json:"room"`
	LastSeen Vitals `json:"lastSeen"`

	// Raw is the source object the record was built from
	Raw map[string]any `json:"-"`
}

// MarshalJSON emits the raw source fields augmented with the canonical ones
func (p Patient) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Raw)+4)
	for k, v := range p.Raw {
		out[k] = v
	}
	out["id"] = p.ID
	out["name"] = p.Name
	out["room"] = p.Room
	out["lastSeen"] = p.LastSeen
	return json.Marshal(out)
}

// NormalizePatient maps one raw patient object onto the canonical record
func NormalizePatient(raw map[string]any) Patient {
	p := Patient{Raw: raw}
	p.ID, _ = firstPresent(raw, patientIDKeys)
	p.Name = displayString(raw, patientNameKeys)
	p.Room = displayString(raw, patientRoomKeys)
	p.LastSeen = normalizeVitals(raw)
	return p
}

// NormalizePatients accepts a bare array or an object wrapping one and
// normalizes every element. Anything else yields an empty list.
func NormalizePatients(body any) []Patient {
	items := patientItems(body)
	out := make([]Patient, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			obj = map[string]any{}
		}
		out = append(out, NormalizePatient(obj))
	}
	return out
}

func patientItems(body any) []any {
	switch t := body.(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range patientListKeys {
			if arr, ok := t[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

func normalizeVitals(raw map[string]any) Vitals {
	last := map[string]any{}
	if v, ok := firstPresent(raw, lastVitalsKeys); ok {
		if m, ok := v.(map[string]any); ok {
			last = m
		}
	}

	var vitals Vitals
	vitals.HR = firstNumber(last, heartRateKeys)
	vitals.SpO2 = firstNumber(last, spo2Keys)
	vitals.Temp = firstNumber(last, tempCelsiusKeys)
	if vitals.Temp == nil {
		if f := firstNumber(last, tempFahrenheitKs); f != nil {
			c := math.Round((*f-32)*5/9*10) / 10
			vitals.Temp = &c
		}
	}
	if v, ok := firstPresent(raw, lastSeenKeys); ok {
		vitals.Timestamp = epochSeconds(v)
	}
	return vitals
}

// displayString returns the first present alias rendered as a string, or
// Placeholder
func displayString(obj map[string]any, keys []string) string {
	v, ok := firstPresent(obj, keys)
	if !ok {
		return Placeholder
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// firstNumber returns the first present alias that converts to a finite number
func firstNumber(obj map[string]any, keys []string) *float64 {
	v, ok := firstPresent(obj, keys)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// epochSeconds converts a numeric or RFC 3339 timestamp to epoch seconds.
// Values beyond millisThreshold are read as milliseconds.
func epochSeconds(v any) *int64 {
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			sec := ts.Unix()
			return &sec
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	if math.Abs(f) >= millisThreshold {
		f /= 1000
	}
	sec := int64(math.Floor(f))
	return &sec
}

// Profile is the nurse profile exactly as the server returned it
type Profile map[string]any

// DisplayName returns the nurse's name, joining first and last name when no
// full name is present
func (p Profile) DisplayName() string {
	if v, ok := firstPresent(p, profileNameKeys); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	first, _ := p["firstName"].(string)
	last, _ := p["lastName"].(string)
	return strings.TrimSpace(first + " " + last)
}

// Facility returns the facility the nurse works at, or ""
func (p Profile) Facility() string {
	if v, ok := firstPresent(p, profileFacilityKeys); ok {
		if s, ok := v.(string); ok {
			return s
		}
		if m, ok := v.(map[string]any); ok {
			s, _ := m["name"].(string)
			return s
		}
	}
	return ""
}

// Email returns the nurse's login email, or Placeholder
func (p Profile) Email() string {
	return displayString(p, profileEmailKeys)
}

// NurseID returns the nurse identifier, or Placeholder
func (p Profile) NurseID() string {
	return displayString(p, profileNurseIDKeys)
}

// ShiftPreference returns "Night" when the server says so and "Day" otherwise
func (p Profile) ShiftPreference() string {
	if v, ok := firstPresent(p, profileShiftKeys); ok && v == ShiftNight {
		return ShiftNight
	}
	return ShiftDay
}

const (
	ShiftDay   = "Day"
	ShiftNight = "Night"
)

// ProfilePatch carries the editable profile fields. Nil fields are omitted.
type ProfilePatch struct {
	FullName        *string `json:"fullName,omitempty"`
	Facility        *string `json:"facility,omitempty"`
	ShiftPreference *string `json:"shiftPreference,omitempty"`
}

func profileFromBody(body any) Profile {
	obj, _ := body.(map[string]any)
	return Profile(obj)
}
