package client

import (
	"encoding/json"
	"testing"
)

func decodeObject(t *testing.T, s string) map[string]any {
	t.Helper()
	obj, ok := decodeJSON([]byte(s)).(map[string]any)
	if !ok {
		t.Fatalf("not a JSON object: %s", s)
	}
	return obj
}

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestNormalizePatient_Aliases(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantID   any
		wantName string
		wantRoom string
		want     Vitals
	}{
		{
			name:     "underscored aliases",
			raw:      `{"_id":"5","patientName":"A","bed":"12","last_vitals":{"hr":80,"SpO2":97,"tempC":37.2},"last_seen":1000}`,
			wantID:   "5",
			wantName: "A",
			wantRoom: "12",
			want:     Vitals{HR: floatPtr(80), SpO2: floatPtr(97), Temp: floatPtr(37.2), Timestamp: int64Ptr(1000)},
		},
		{
			name:     "canonical names",
			raw:      `{"id":"p-1","name":"Ana Ruiz","room":"4B","lastVitals":{"hr":72,"spo2":99,"temp":36.8},"lastSeen":1700000000}`,
			wantID:   "p-1",
			wantName: "Ana Ruiz",
			wantRoom: "4B",
			want:     Vitals{HR: floatPtr(72), SpO2: floatPtr(99), Temp: floatPtr(36.8), Timestamp: int64Ptr(1700000000)},
		},
		{
			name:     "nothing present",
			raw:      `{}`,
			wantID:   nil,
			wantName: Placeholder,
			wantRoom: Placeholder,
		},
		{
			name:     "null values fall through",
			raw:      `{"id":null,"patient_id":"x","name":null,"fullName":"B","room":null,"roomNumber":7}`,
			wantID:   "x",
			wantName: "B",
			wantRoom: "7",
		},
		{
			name:     "empty string is present",
			raw:      `{"patientId":"9","name":"","room":""}`,
			wantID:   "9",
			wantName: "",
			wantRoom: "",
		},
		{
			name:     "fahrenheit converted to celsius",
			raw:      `{"id":"1","lastVitals":{"spO2":"95","tempF":98.6}}`,
			wantID:   "1",
			wantName: Placeholder,
			wantRoom: Placeholder,
			want:     Vitals{SpO2: floatPtr(95), Temp: floatPtr(37)},
		},
		{
			name:     "celsius wins over fahrenheit",
			raw:      `{"id":"1","lastVitals":{"temperature":38,"tempF":90}}`,
			wantID:   "1",
			wantName: Placeholder,
			wantRoom: Placeholder,
			want:     Vitals{Temp: floatPtr(38)},
		},
		{
			name:     "millisecond timestamp",
			raw:      `{"id":"1","lastSeen":1700000000123}`,
			wantID:   "1",
			wantName: Placeholder,
			wantRoom: Placeholder,
			want:     Vitals{Timestamp: int64Ptr(1700000000)},
		},
		{
			name:     "rfc3339 timestamp",
			raw:      `{"id":"1","last_seen":"2023-11-14T22:13:20Z"}`,
			wantID:   "1",
			wantName: Placeholder,
			wantRoom: Placeholder,
			want:     Vitals{Timestamp: int64Ptr(1700000000)},
		},
		{
			name:     "non numeric readings become nil",
			raw:      `{"id":"1","lastVitals":{"hr":"n/a","spo2":true},"lastSeen":"yesterday"}`,
			wantID:   "1",
			wantName: Placeholder,
			wantRoom: Placeholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NormalizePatient(decodeObject(t, tt.raw))

			if tt.wantID == nil {
				if p.ID != nil {
					t.Errorf("ID = %v, want nil", p.ID)
				}
			} else if p.ID != tt.wantID {
				t.Errorf("ID = %v, want %v", p.ID, tt.wantID)
			}
			if p.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name, tt.wantName)
			}
			if p.Room != tt.wantRoom {
				t.Errorf("Room = %q, want %q", p.Room, tt.wantRoom)
			}
			if !equalFloat(p.LastSeen.HR, tt.want.HR) {
				t.Errorf("HR = %v, want %v", p.LastSeen.HR, tt.want.HR)
			}
			if !equalFloat(p.LastSeen.SpO2, tt.want.SpO2) {
				t.Errorf("SpO2 = %v, want %v", p.LastSeen.SpO2, tt.want.SpO2)
			}
			if !equalFloat(p.LastSeen.Temp, tt.want.Temp) {
				t.Errorf("Temp = %v, want %v", p.LastSeen.Temp, tt.want.Temp)
			}
			if !equalInt(p.LastSeen.Timestamp, tt.want.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", p.LastSeen.Timestamp, tt.want.Timestamp)
			}
		})
	}
}

func TestNormalizePatient_NumericID(t *testing.T) {
	p := NormalizePatient(decodeObject(t, `{"id":12345678901234567}`))
	if n, ok := p.ID.(json.Number); !ok || n.String() != "12345678901234567" {
		t.Errorf("ID = %#v, want json.Number 12345678901234567", p.ID)
	}
}

func TestPatient_MarshalKeepsRawFields(t *testing.T) {
	p := NormalizePatient(decodeObject(t, `{"_id":"5","patientName":"A","bed":"12","diagnosis":"COPD","lastSeen":1000,"last_vitals":{"hr":80}}`))

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if out["diagnosis"] != "COPD" || out["_id"] != "5" || out["bed"] != "12" {
		t.Errorf("raw fields lost: %s", data)
	}
	if out["id"] != "5" || out["name"] != "A" || out["room"] != "12" {
		t.Errorf("canonical fields missing: %s", data)
	}
	lastSeen, ok := out["lastSeen"].(map[string]any)
	if !ok {
		t.Fatalf("lastSeen should be the canonical vitals object: %s", data)
	}
	if lastSeen["timestamp"] != float64(1000) || lastSeen["hr"] != float64(80) {
		t.Errorf("lastSeen = %v", lastSeen)
	}
	for _, k := range []string{"spo2", "temp"} {
		if v, present := lastSeen[k]; !present || v != nil {
			t.Errorf("lastSeen[%q] = %v, want explicit null", k, v)
		}
	}
}

func TestNormalizePatients_Payloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bare array", body: `[{"id":1},{"id":2},{"id":3}]`, want: 3},
		{name: "patients envelope", body: `{"patients":[{"id":1}]}`, want: 1},
		{name: "data envelope", body: `{"data":[{"id":1},{"id":2}]}`, want: 2},
		{name: "results envelope", body: `{"results":[]}`, want: 0},
		{name: "non array envelope skipped", body: `{"patients":{"id":1},"data":[{"id":2}]}`, want: 1},
		{name: "unknown object", body: `{"items":[{"id":1}]}`, want: 0},
		{name: "null body", body: ``, want: 0},
		{name: "non object items", body: `[1,"x"]`, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePatients(decodeJSON([]byte(tt.body)))
			if got == nil {
				t.Fatal("NormalizePatients() should never return nil")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		body string
		want TokenPair
	}{
		{`{"accessToken":"a","refresh_token":"r"}`, TokenPair{"a", "r"}},
		{`{"accessToken":"","access_token":"a2"}`, TokenPair{AccessToken: "a2"}},
		{`{"tokens":{"access_token":"a","refresh_token":"r"}}`, TokenPair{"a", "r"}},
		{`{"token":42}`, TokenPair{}},
		{`[]`, TokenPair{}},
		{``, TokenPair{}},
	}

	for _, tt := range tests {
		if got := ExtractTokens(decodeJSON([]byte(tt.body))); got != tt.want {
			t.Errorf("ExtractTokens(%s) = %+v, want %+v", tt.body, got, tt.want)
		}
	}
}

func TestProfile_DerivedViews(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantName     string
		wantFacility string
		wantEmail    string
		wantNurseID  string
		wantShift    string
	}{
		{
			name:         "full profile",
			raw:          `{"fullName":"Sarah Chen","facility":"St. Mary","email":"s@x","nurseId":"N-7","shiftPreference":"Night"}`,
			wantName:     "Sarah Chen",
			wantFacility: "St. Mary",
			wantEmail:    "s@x",
			wantNurseID:  "N-7",
			wantShift:    ShiftNight,
		},
		{
			name:         "first and last name",
			raw:          `{"firstName":"Sarah","lastName":"Chen","hospital":"General","username":"schen","id":12,"shift":"Evening"}`,
			wantName:     "Sarah Chen",
			wantFacility: "General",
			wantEmail:    "schen",
			wantNurseID:  "12",
			wantShift:    ShiftDay,
		},
		{
			name:         "nested facility",
			raw:          `{"name":"Sam","facility":{"name":"North Wing"}}`,
			wantName:     "Sam",
			wantFacility: "North Wing",
			wantEmail:    Placeholder,
			wantNurseID:  Placeholder,
			wantShift:    ShiftDay,
		},
		{
			name:         "empty",
			raw:          `{}`,
			wantName:     "",
			wantFacility: "",
			wantEmail:    Placeholder,
			wantNurseID:  Placeholder,
			wantShift:    ShiftDay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile(decodeObject(t, tt.raw))
			if got := p.DisplayName(); got != tt.wantName {
				t.Errorf("DisplayName() = %q, want %q", got, tt.wantName)
			}
			if got := p.Facility(); got != tt.wantFacility {
				t.Errorf("Facility() = %q, want %q", got, tt.wantFacility)
			}
			if got := p.Email(); got != tt.wantEmail {
				t.Errorf("Email() = %q, want %q", got, tt.wantEmail)
			}
			if got := p.NurseID(); got != tt.wantNurseID {
				t.Errorf("NurseID() = %q, want %q", got, tt.wantNurseID)
			}
			if got := p.ShiftPreference(); got != tt.wantShift {
				t.Errorf("ShiftPreference() = %q, want %q", got, tt.wantShift)
			}
		})
	}
}
