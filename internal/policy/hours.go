package policy

import "time"

const (
	DefaultOpenHour  = 8
	DefaultCloseHour = 18
)

// Window is the outcome of a business-hours evaluation.
type Window struct {
	Open bool
	// Weekday is the ISO weekday (Monday=1 ... Sunday=7) in the business timezone.
	Weekday int
	Hour    int
	Local   time.Time
}

// BusinessHours is the Monday-Friday [OpenHour, CloseHour) window in a fixed timezone.
type BusinessHours struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

// NewBusinessHours returns the window for loc. A nil loc means UTC.
func NewBusinessHours(loc *time.Location, openHour, closeHour int) *BusinessHours {
	if loc == nil {
		loc = time.UTC
	}
	return &BusinessHours{loc: loc, openHour: openHour, closeHour: closeHour}
}

// Check evaluates now against the window.
func (b *BusinessHours) Check(now time.Time) Window {
	local := now.In(b.loc)
	weekday := isoWeekday(local.Weekday())
	hour := local.Hour()
	return Window{
		Open:    weekday >= 1 && weekday <= 5 && hour >= b.openHour && hour < b.closeHour,
		Weekday: weekday,
		Hour:    hour,
		Local:   local,
	}
}

// Location returns the business timezone.
func (b *BusinessHours) Location() *time.Location { return b.loc }

func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
