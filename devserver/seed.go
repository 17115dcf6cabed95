package devserver

import "time"

// Demo credentials created by Seed
const (
	DemoEmail    = "sarah.chen@stmary.org"
	DemoPassword = "wardwatch"
)

// Seed adds a demo nurse and a handful of patients. The patient records
// deliberately use different field spellings, the way mixed upstream
// systems report them.
func Seed(s *Server) error {
	if _, err := s.AddNurse(DemoEmail, DemoPassword, map[string]any{
		"fullName":        "Sarah Chen",
		"facility":        "St. Mary Medical Center",
		"shiftPreference": "Day",
	}); err != nil {
		return err
	}

	now := time.Now()
	s.AddPatient(map[string]any{
		"id":   "p-101",
		"name": "Ana Ruiz",
		"room": "4B",
		"lastVitals": map[string]any{
			"hr": 72, "spo2": 98, "tempC": 36.8,
		},
		"lastSeen": now.Add(-2 * time.Minute).Unix(),
	})
	s.AddPatient(map[string]any{
		"_id":         "p-102",
		"patientName": "James Okafor",
		"bed":         "12",
		"last_vitals": map[string]any{
			"heartRate": 96, "SpO2": 93, "tempF": 100.9,
		},
		"last_seen": now.Add(-3 * time.Hour).UnixMilli(),
	})
	s.AddPatient(map[string]any{
		"patient_id": 103,
		"fullName":   "Mei Tanaka",
		"roomNumber": 7,
		"latestVitals": map[string]any{
			"heart_rate": 64, "SPO2": 99, "temperature": 37.1,
		},
		"lastSeen": now.Add(-40 * time.Second).UTC().Format(time.RFC3339),
	})
	return nil
}
