package killzone

import (
	"fmt"
	"time"
)

// Clock is a UTC wall-clock time of day with minute precision
type Clock struct {
	hour, minute int
}

// ParseClock parses "HH:MM" (24h)
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return Clock{}, fmt.Errorf("invalid clock %q: must be HH:MM", s)
	}
	return Clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// MustClock is ParseClock for constants
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Minutes since midnight
func (c Clock) Minutes() int {
	return c.hour*60 + c.minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}
