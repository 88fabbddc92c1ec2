package journal

import (
	"time"

	"github.com/pbaille/journal/internal/domain"
)

// Verdict is the outcome of validating one import candidate: Valid or Rejected
type Verdict interface {
	verdict()
}

// Valid carries an accepted entry
type Valid struct {
	Entry domain.Entry
}

// Rejected explains why a candidate was dropped
type Rejected struct {
	Reason string
}

func (Valid) verdict()    {}
func (Rejected) verdict() {}

// timestampLayouts are the ISO 8601 forms accepted on import. Timestamps
// without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// Validate checks a decoded JSON value for the shape of an exported entry:
// an object with string id, timestamp and text, the timestamp in ISO 8601.
func Validate(candidate any) Verdict {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return Rejected{Reason: "not an object"}
	}

	id, ok := obj["id"].(string)
	if !ok {
		return Rejected{Reason: "id is not a string"}
	}
	rawTS, ok := obj["timestamp"].(string)
	if !ok {
		return Rejected{Reason: "timestamp is not a string"}
	}
	text, ok := obj["text"].(string)
	if !ok {
		return Rejected{Reason: "text is not a string"}
	}

	ts, ok := parseTimestamp(rawTS)
	if !ok {
		return Rejected{Reason: "timestamp is not ISO 8601"}
	}

	return Valid{Entry: domain.Entry{ID: id, Timestamp: ts, Text: text}}
}
