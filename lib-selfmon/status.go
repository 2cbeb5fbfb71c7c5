package selfmon

import (
	"fmt"
)

const (
	// StatusDown means the target did not answer, or answered with a status code outside of 2xx and 3xx.
	StatusDown Status = iota

	// StatusUp means the target answered with a status code in 200-399.
	StatusUp
)

// Status is the status of a single check.
type Status int8

// ParseStatus parses status string as stored in the check log.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "up":
		return StatusUp, nil
	case "down":
		return StatusDown, nil
	default:
		return StatusDown, fmt.Errorf("invalid status: %q", raw)
	}
}

// StatusOf decides check status from HTTP status code.
// The code 0 means no response was obtained.
func StatusOf(code int) Status {
	if 200 <= code && code < 400 {
		return StatusUp
	}
	return StatusDown
}

// String is make Status a string
func (s Status) String() string {
	if s == StatusUp {
		return "up"
	}
	return "down"
}

// MarshalText is marshal Status as text
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is unmarshal text as status.
//
// Unlike ParseStatus on the other packages, unknown values are reported as an error so a broken log is detected.
func (s *Status) UnmarshalText(text []byte) error {
	x, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = x
	return nil
}
