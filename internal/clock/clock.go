package clock

import (
	"time"

	"go.uber.org/fx"
)

// DateLayout is the calendar date format stored for invoices and schedules.
const DateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return SystemClock{}
}

// Today returns the calendar date of c in loc, formatted as YYYY-MM-DD.
func Today(c Clock, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format(DateLayout)
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
