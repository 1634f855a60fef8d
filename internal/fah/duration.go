package fah

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("fah: invalid duration")

// Duration is a span the daemon prints as text such as "1 days 02 hours" or
// "3.50 mins". Known is false for "unknowntime".
type Duration struct {
	time.Duration
	Known bool
}

const unknownTime = "unknowntime"

var durationUnits = map[string]time.Duration{
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"sec":     time.Second,
	"secs":    time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"ms":      time.Millisecond,
	"msec":    time.Millisecond,
	"msecs":   time.Millisecond,
	"us":      time.Microsecond,
	"usec":    time.Microsecond,
	"usecs":   time.Microsecond,
}

// ParseDuration reads a daemon duration: one or more "<number> <unit>" pairs.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return Duration{}, fmt.Errorf("%w: empty", ErrInvalidDuration)
	case unknownTime, "unknown":
		return Duration{}, nil
	}

	fields := strings.Fields(s)
	if len(fields)%2 != 0 {
		return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	var total float64
	for i := 0; i < len(fields); i += 2 {
		n, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || n < 0 {
			return Duration{}, fmt.Errorf("%w: bad quantity %q in %q", ErrInvalidDuration, fields[i], s)
		}
		unit, ok := durationUnits[strings.ToLower(fields[i+1])]
		if !ok {
			return Duration{}, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidDuration, fields[i+1], s)
		}
		total += n * float64(unit)
	}
	return Duration{Duration: time.Duration(total), Known: true}, nil
}

func (d Duration) String() string {
	if !d.Known {
		return unknownTime
	}
	return d.Duration.String()
}

// UnmarshalJSON accepts the daemon's text form or a number of seconds. null
// and "" (a None value) decode as unknown.
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*d = Duration{}
			return nil
		}
		parsed, err := ParseDuration(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, data)
	}
	*d = Duration{Duration: time.Duration(secs * float64(time.Second)), Known: true}
	return nil
}

// MarshalJSON writes whole seconds, or null when the span is unknown.
func (d Duration) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, int64(d.Seconds()), 10), nil
}
