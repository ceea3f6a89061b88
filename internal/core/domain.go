package core

import (
	"errors"
	"strings"
)

// DefaultLocationName is used when a raw record carries no location name.
const DefaultLocationName = "Local"

type (
	Money struct {
		Cents int64
	}

	Location struct {
		ID      string
		Name    string
		Address string
		Icon    string
	}

	Companion struct {
		ID     string
		Name   string
		Active bool
	}

	// VisitCompanion is one companion's participation in a single visit,
	// optionally with a cost allowance for that visit.
	VisitCompanion struct {
		ID   string
		Name string
		Cost Money
	}

	Visit struct {
		ID          string
		Date        string // YYYY-MM-DD, empty when the source had no usable date
		Time        string // HH:MM scheduled start
		StartTime   string // HH:MM actual start, set by finalize
		EndTime     string // HH:MM actual end, set by finalize
		IsFinalized bool
		Location    Location
		Companions  []VisitCompanion
		Observation string
	}
)

var (
	ErrEmptyDate      = errors.New("empty date")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidClock   = errors.New("invalid time")
	ErrEndBeforeStart = errors.New("end time precedes start time")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyName      = errors.New("empty name")
)

// ValidClock reports whether s is a zero-padded HH:MM clock string.
func ValidClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for i := 0; i < 5; i++ {
		if i == 2 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hh := (s[0]-'0')*10 + (s[1] - '0')
	mm := (s[3]-'0')*10 + (s[4] - '0')
	return hh < 24 && mm < 60
}

// ClockBefore reports whether a is strictly earlier than b. Both must be
// zero-padded HH:MM, which makes lexicographic comparison correct.
func ClockBefore(a, b string) bool {
	return a < b
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Companion) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (v Visit) Validate() error {
	if v.Date == "" {
		return ErrEmptyDate
	}
	if normalizeDate(v.Date) != v.Date {
		return ErrInvalidDate
	}
	if v.Time != "" && !ValidClock(v.Time) {
		return ErrInvalidClock
	}
	if v.StartTime != "" && !ValidClock(v.StartTime) {
		return ErrInvalidClock
	}
	if v.EndTime != "" && !ValidClock(v.EndTime) {
		return ErrInvalidClock
	}
	if v.StartTime != "" && v.EndTime != "" && ClockBefore(v.EndTime, v.StartTime) {
		return ErrEndBeforeStart
	}
	return nil
}
