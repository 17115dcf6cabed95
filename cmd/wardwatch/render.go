package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/panyam/wardwatch/client"
)

const noPatients = "No assigned patients."

func displayID(id any) string {
	if id == nil {
		return client.Placeholder
	}
	return fmt.Sprint(id)
}

// renderPatients writes the patient table. Readings that are missing show
// the placeholder.
func renderPatients(w io.Writer, patients []client.Patient, unit client.TempUnit, now time.Time) error {
	if len(patients) == 0 {
		_, err := fmt.Fprintln(w, noPatients)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATIENT\tROOM\tLAST SEEN\tHR\tSPO2\tTEMP")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			displayID(p.ID),
			p.Name,
			p.Room,
			client.FormatLastSeen(p.LastSeen.Timestamp, now),
			client.FormatReading(p.LastSeen.HR),
			client.FormatReading(p.LastSeen.SpO2),
			client.FormatTemperature(p.LastSeen.Temp, unit),
		)
	}
	return tw.Flush()
}

func renderProfile(w io.Writer, p client.Profile) error {
	name := p.DisplayName()
	if name == "" {
		name = client.Placeholder
	}
	facility := p.Facility()
	if facility == "" {
		facility = client.Placeholder
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\t%s\n", name)
	fmt.Fprintf(tw, "Email\t%s\n", p.Email())
	fmt.Fprintf(tw, "Nurse ID\t%s\n", p.NurseID())
	fmt.Fprintf(tw, "Facility\t%s\n", facility)
	fmt.Fprintf(tw, "Shift\t%s\n", p.ShiftPreference())
	return tw.Flush()
}

func renderGreeting(w io.Writer, p client.Profile) error {
	name := p.DisplayName()
	if name == "" {
		name = "there"
	}
	facility := p.Facility()
	if facility == "" {
		facility = client.Placeholder
	}
	_, err := fmt.Fprintf(w, "Hi %s\n%s\n\nAssigned Patients\n", name, facility)
	return err
}
