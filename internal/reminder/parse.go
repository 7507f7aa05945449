package reminder

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrBadTimeFormat is returned for anything that is not a valid HH:MM.
var ErrBadTimeFormat = errors.New("invalid time format, expected HH:MM")

// Leading zero on the hour is optional ("7:05" and "07:05" both parse);
// minutes are always two digits.
var hhmmRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ParseHHMM parses a wall-clock time of day. Hour is 0..23, minute 0..59.
func ParseHHMM(s string) (hour, minute int, err error) {
	m := hhmmRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, ErrBadTimeFormat
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}
