package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time as stored in documents.
// Stores have written it as RFC3339 strings, raw epoch milliseconds and
// {seconds, nanoseconds} wrapper objects; all decode to the same value.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// FromMillis builds a Timestamp from epoch milliseconds
func FromMillis(ms int64) Timestamp {
	return Timestamp{Time: time.UnixMilli(ms)}
}

// Millis returns epoch milliseconds, or 0 for the zero timestamp
func (t Timestamp) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// MarshalJSON writes RFC3339 with nanoseconds, null for the zero value
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

type timestampWrapper struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	LSeconds     *int64 `json:"_seconds"`
	LNanoseconds int64  `json:"_nanoseconds"`
}

// UnmarshalJSON accepts strings, millisecond numbers and wrapper objects
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			// Some writers stored millis as a string
			ms, perr := strconv.ParseInt(s, 10, 64)
			if perr != nil {
				return fmt.Errorf("invalid timestamp %q: %w", s, err)
			}
			*t = FromMillis(ms)
			return nil
		}
		*t = Timestamp{Time: parsed}
	case '{':
		var w timestampWrapper
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		switch {
		case w.Seconds != nil:
			*t = Timestamp{Time: time.Unix(*w.Seconds, w.Nanoseconds)}
		case w.LSeconds != nil:
			*t = Timestamp{Time: time.Unix(*w.LSeconds, w.LNanoseconds)}
		default:
			*t = Timestamp{}
		}
	default:
		var ms float64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", string(data), err)
		}
		*t = FromMillis(int64(ms))
	}
	return nil
}
