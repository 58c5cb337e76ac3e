package model

import (
	"bytes"
	"time"
)

// Message holds information about a single message. Messages are produced by
// the server, either from a history fetch or a live push, and are never
// mutated after receipt.
type Message struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp wraps time.Time to accept both RFC 3339 and the zoneless
// ISO 8601 strings the backend emits for UTC instants.
type Timestamp struct {
	time.Time
}

const naiveISO8601 = "2006-01-02T15:04:05.999999999"

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Zoneless timestamps are UTC.
		parsed, err = time.Parse(naiveISO8601, s)
		if err != nil {
			return err
		}
	}

	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
