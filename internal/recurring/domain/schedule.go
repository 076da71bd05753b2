package domain

import (
	"errors"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

var ErrInvalidFrequency = errors.New("invalid_frequency")

// ParseFrequency normalizes a frequency name.
func ParseFrequency(value string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(value)))
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return f, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// NextOccurrence returns the next due date after from. Month based steps keep
// the day of month and clamp to the last day when the target month is shorter:
// 2025-01-31 monthly is 2025-02-28 and 2024-02-29 yearly is 2025-02-28.
func NextOccurrence(freq Frequency, from time.Time) (time.Time, error) {
	switch freq {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return addMonthsClamped(from, 1), nil
	case FrequencyQuarterly:
		return addMonthsClamped(from, 3), nil
	case FrequencyYearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, ErrInvalidFrequency
	}
}

func addMonthsClamped(from time.Time, months int) time.Time {
	year, month, day := from.Date()
	hour, min, sec := from.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, hour, min, sec, from.Nanosecond(), from.Location())
	lastDay := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), from.Location())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, from.Nanosecond(), from.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
