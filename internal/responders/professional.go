// Package responders manages the crisis responder directory and matches
// responders to active crises by specialty, language, geography, rating and
// capacity.
package responders

import (
	"time"
)

// Status is a responder's employment status.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusOnLeave   Status = "on_leave"
	StatusSuspended Status = "suspended"
)

// Availability is a responder's self-reported readiness.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

// Window is one daily availability window, times formatted "15:04" in the
// responder's own timezone.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule maps weekdays to availability windows.
type Schedule map[time.Weekday][]Window

// Professional is a crisis responder. CurrentCases is the only field mutated
// at run time; all updates go through the repository so the caseload cap is
// enforced atomically.
type Professional struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Specialties      []string     `json:"specialties"`
	Languages        []string     `json:"languages"`
	Region           string       `json:"region"`
	Timezone         string       `json:"timezone"`
	Schedule         Schedule     `json:"schedule"`
	CurrentCases     int          `json:"current_cases"`
	MaxCases         int          `json:"max_cases"`
	Rating           float64      `json:"rating"`        // overall, 0-5
	CrisisRating     float64      `json:"crisis_rating"` // crisis response, 0-10
	EmergencyContact bool         `json:"emergency_contact"`
	Status           Status       `json:"status"`
	Availability     Availability `json:"availability"`
	Phone            string       `json:"phone,omitempty"`
	Email            string       `json:"email,omitempty"`
}

// HasCapacity reports whether the responder can take another case.
func (p *Professional) HasCapacity() bool {
	return p.CurrentCases < p.MaxCases
}

// InSchedule reports whether t falls inside one of the responder's windows
// for that weekday. t should already be in the responder's timezone.
func (p *Professional) InSchedule(t time.Time) bool {
	windows, ok := p.Schedule[t.Weekday()]
	if !ok {
		return false
	}
	clock := t.Format("15:04")
	for _, w := range windows {
		if clock >= w.Start && clock < w.End {
			return true
		}
	}
	return false
}

// NextWindowStart returns the start of the next schedule window strictly
// after t, looking ahead up to a week. Zero time when no window exists.
func (p *Professional) NextWindowStart(t time.Time) time.Time {
	for day := 0; day < 8; day++ {
		candidate := t.AddDate(0, 0, day)
		windows, ok := p.Schedule[candidate.Weekday()]
		if !ok {
			continue
		}
		clock := "00:00"
		if day == 0 {
			clock = t.Format("15:04")
		}
		for _, w := range windows {
			if w.Start > clock {
				start, err := time.Parse("15:04", w.Start)
				if err != nil {
					continue
				}
				return time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
					start.Hour(), start.Minute(), 0, 0, t.Location())
			}
		}
	}
	return time.Time{}
}
