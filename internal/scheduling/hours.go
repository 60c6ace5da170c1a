package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BusinessHours maps weekdays to opening hours. A weekday with no entry is closed.
// On the wire it is keyed by lower-case English weekday names.
type BusinessHours map[time.Weekday]DayHours

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsOpen reports whether at falls in [open, close) of its weekday. at is read in its own location.
func (bh BusinessHours) IsOpen(at time.Time) bool {
	day, ok := bh[at.Weekday()]
	if !ok || day.Closed {
		return false
	}
	tod := TimeOfDayOf(at)
	return tod >= day.Open && tod < day.Close
}

// ClosedOn reports whether the weekday is closed for the whole day.
func (bh BusinessHours) ClosedOn(wd time.Weekday) bool {
	day, ok := bh[wd]
	return !ok || day.Closed
}

func (bh BusinessHours) Validate() error {
	for wd, day := range bh {
		if wd < time.Sunday || wd > time.Saturday {
			return invalidInput("weekday %d is out of range", wd)
		}
		if day.Closed {
			continue
		}
		if !day.Open.Valid() || !day.Close.Valid() {
			return invalidInput("%s hours are out of range", strings.ToLower(wd.String()))
		}
		if day.Close <= day.Open {
			return invalidInput("%s closes at %s, not after it opens at %s",
				strings.ToLower(wd.String()), day.Close, day.Open)
		}
	}
	return nil
}

func (bh BusinessHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]DayHours, len(bh))
	for wd, day := range bh {
		out[strings.ToLower(wd.String())] = day
	}
	return json.Marshal(out)
}

func (bh *BusinessHours) UnmarshalJSON(b []byte) error {
	var raw map[string]DayHours
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(BusinessHours, len(raw))
	for name, day := range raw {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		out[wd] = day
	}
	*bh = out
	return nil
}

// dayHoursJSON lets DayHours tolerate empty open/close strings on closed days.
type dayHoursJSON struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed"`
}

func (d DayHours) MarshalJSON() ([]byte, error) {
	out := dayHoursJSON{Closed: d.Closed}
	if !d.Closed {
		out.Open = d.Open.String()
		out.Close = d.Close.String()
	}
	return json.Marshal(out)
}

func (d *DayHours) UnmarshalJSON(b []byte) error {
	var raw dayHoursJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = DayHours{Closed: raw.Closed}
	if raw.Closed {
		return nil
	}
	open, err := ParseTimeOfDay(raw.Open)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	closeAt, err := ParseTimeOfDay(raw.Close)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	d.Open, d.Close = open, closeAt
	return nil
}
