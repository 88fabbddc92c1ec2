package domain

import "time"

// Entry is a single kept fragment of text. Entries are never edited.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// ReflectionType names the family of patterns a reflection was derived from
type ReflectionType string

const (
	ReflectionLexical    ReflectionType = "lexical"
	ReflectionRhythm     ReflectionType = "rhythm"
	ReflectionRecurrence ReflectionType = "recurrence"
)

// Valid reports whether t is one of the known reflection types
func (t ReflectionType) Valid() bool {
	switch t {
	case ReflectionLexical, ReflectionRhythm, ReflectionRecurrence:
		return true
	}
	return false
}

// Reflection holds the generated questions for one reflection type.
// At most one reflection per type is stored.
type Reflection struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Patterns    []string       `json:"patterns"`
	Type        ReflectionType `json:"type"`
}

// Unlock thresholds per reflection type
const (
	LexicalThreshold    = 30  // entries
	RhythmThreshold     = 90  // days
	RecurrenceThreshold = 365 // days
)
