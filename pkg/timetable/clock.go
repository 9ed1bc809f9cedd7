package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// GridUnit is the granularity (minutes) every block and break duration must align to.
const GridUnit = 15

// ErrInvalidClock is returned when a time of day cannot be parsed as HH:MM.
var ErrInvalidClock = errors.New("invalid time of day, expected HH:MM")

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// ParseClock converts an HH:MM string into a Clock.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return Clock(hours*60 + minutes), nil
}

// MustParseClock is ParseClock for literals; it panics on malformed input.
func MustParseClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Add returns the clock shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// String renders the clock as zero-padded HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON encodes the clock as an HH:MM string.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes an HH:MM string.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Interval is a half-open [Start, End) range within a day.
type Interval struct {
	Start Clock `json:"startTime"`
	End   Clock `json:"endTime"`
}

// Minutes returns the interval length.
func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

// Weekday names a teaching day using the upper-case English convention stored by the API.
type Weekday string

// Teaching days.
const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
)

// Weekdays is the default Monday–Friday teaching week.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// AllWeekdays lists every day a block may be placed on, in week order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var weekdayIndex = map[Weekday]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
}

// ParseWeekday normalises a day name and reports whether it is a known teaching day.
func ParseWeekday(raw string) (Weekday, bool) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := weekdayIndex[day]
	return day, ok
}

// Index returns the 1-based ISO position of the day, or 0 when unknown.
func (d Weekday) Index() int {
	return weekdayIndex[d]
}
