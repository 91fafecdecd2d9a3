package gate

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Window is the range of local hours [StartHour, EndHour) during which runs are allowed.
type Window struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// New loads the named zone. A zone that cannot be loaded is a startup failure.
func New(zone string, startHour, endHour int) (Window, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Window{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Window{}, fmt.Errorf("invalid working hours %d-%d", startHour, endHour)
	}
	return Window{Location: loc, StartHour: startHour, EndHour: endHour}, nil
}

// Allows reports whether t falls inside the window in the window's zone.
func (w Window) Allows(t time.Time) bool {
	h := t.In(w.Location).Hour()
	return h >= w.StartHour && h < w.EndHour
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:00-%02d:00 %s", w.StartHour, w.EndHour, w.Location)
}
