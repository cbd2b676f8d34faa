package domain

import (
	dErrors "amparo/pkg/domain-errors"
)

// ClockTime is a 24h time-of-day in "HH:MM" form, the granularity at which
// appointment slots are booked. Stored as the normalized two-digit form so
// string equality is slot equality.
type ClockTime string

// ParseClockTime constructs a ClockTime from external input, normalizing
// single-digit hours ("9:30" -> "09:30").
// Errors: CodeInvalidInput when the value is not a valid 24h HH:MM time.
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) == 4 && s[1] == ':' {
		s = "0" + s
	}
	if len(s) != 5 || s[2] != ':' {
		return "", dErrors.New(dErrors.CodeInvalidInput, "time must be in HH:MM 24h form")
	}
	hour := digits2(s[0], s[1])
	minute := digits2(s[3], s[4])
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "time must be in HH:MM 24h form")
	}
	return ClockTime(s), nil
}

func (t ClockTime) String() string { return string(t) }

func digits2(hi, lo byte) int {
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return -1
	}
	return int(hi-'0')*10 + int(lo-'0')
}
