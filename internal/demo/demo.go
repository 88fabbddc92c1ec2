// Package demo produces synthetic journal entries and writing prompts.
package demo

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/journal/internal/domain"
)

const (
	// DefaultCount is how many entries a demo run adds
	DefaultCount = 50
	// DefaultWindow is how far back demo entries are spread
	DefaultWindow = 120 * 24 * time.Hour
)

// Starters are soft prompts shown above an empty page. The empty string is
// deliberate: often there is no prompt at all.
var Starters = []string{
	"Today contained...",
	"Right now feels like...",
	"The light was...",
	"I noticed...",
	"Silence feels...",
	"Noise has been...",
	"",
}

// Starter picks one of the soft prompts
func Starter(rng *rand.Rand) string {
	return Starters[rng.IntN(len(Starters))]
}

// NewRand returns a generator seeded from the runtime's entropy source
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Generate returns up to count entries with distinct texts drawn from the
// pool, each placed on a random day within window before now at a random
// hour and minute. Nothing is placed after now.
func Generate(now time.Time, count int, window time.Duration, rng *rand.Rand) []domain.Entry {
	if count > len(pool) {
		count = len(pool)
	}
	days := int(window / (24 * time.Hour))
	if days < 1 {
		days = 1
	}

	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	picks := rng.Perm(len(pool))[:max(count, 0)]
	entries := make([]domain.Entry, 0, len(picks))
	for _, idx := range picks {
		day := midnight.AddDate(0, 0, -rng.IntN(days))
		ts := day.Add(time.Duration(rng.IntN(24))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
		if ts.After(now) {
			ts = now
		}
		entries = append(entries, domain.Entry{
			ID:        uuid.New().String(),
			Timestamp: ts,
			Text:      pool[idx],
		})
	}
	return entries
}

var pool = []string{
	"The kettle took longer than usual. I waited anyway.",
	"Rain on the skylight all afternoon.",
	"Found an old receipt in a coat pocket. Coffee for two.",
	"Walked the long way home to avoid the square.",
	"The neighbour's dog barked at nothing for an hour.",
	"Could not remember the word for the colour of the sky at six.",
	"Fixed the drawer that has been sticking since spring.",
	"Someone on the train was humming a song my mother used to sing.",
	"Ate standing at the counter again.",
	"The light was orange on the wall and then it was gone.",
	"A moth stayed on the window all night.",
	"Wrote a letter and did not send it.",
	"The stairs creak on the fourth step. I counted.",
	"Bought bread, forgot milk, went back, bought bread.",
	"The sea was flat and grey and very loud.",
	"Silence in the office after everyone left.",
	"Watched the clock in the waiting room stop and start.",
	"Stones by the river still warm after sunset.",
	"Cut my hair myself. Uneven. Fine.",
	"An email I have been waiting for did not arrive.",
	"The smell of the hallway when it has just been cleaned.",
	"Noise from the street kept me awake. I listened instead.",
	"Ran my hand along the brick wall on the way to work.",
	"Left the radio on in the empty kitchen.",
	"Two cups on the table, one still full.",
	"The first cold morning. Breath visible.",
	"Dreamt of a house with no doors.",
	"Someone laughed in the next room and I did not know why.",
	"The tram was late. Nobody complained.",
	"Moved the chair closer to the window.",
	"Tidied the desk and then sat at the kitchen table instead.",
	"The cat watched me as if I were late for something.",
	"Saw my reflection in a shop window and did not recognise the coat.",
	"Read the same page four times.",
	"A bird hit the glass and flew off. I kept thinking about it.",
	"The fridge hums in a note I can almost sing.",
	"Frost on the car. Drew a line through it with one finger.",
	"Listened to a voicemail from years ago.",
	"Nothing happened today. It felt like enough.",
	"Waited for the bus that I knew was not coming.",
	"The shadows of the blinds on the bed at noon.",
	"Heard church bells from a church I have never seen.",
	"The plant on the sill has a new leaf.",
	"Spilled tea on the map of a city I have not visited.",
	"Called and hung up before it rang.",
	"The park was empty. The swings were moving.",
	"Put on a record and did not listen to it.",
	"Wind in the chimney like someone breathing.",
	"A stranger held the door and we both said sorry.",
	"The lamp flickered twice and then held.",
	"Kept a pebble from the beach in my pocket all week.",
	"The smell of rain before the rain.",
	"Slept through the alarm and felt rested for once.",
	"Fog so thick the far bank disappeared.",
	"Took a photograph of the empty street and deleted it.",
	"Somebody's keys left on the wall outside.",
	"The bread rose. Small victory.",
	"Wore the grey scarf. It still smells of the old flat.",
	"Everything in the house was quiet except the clock.",
	"The moon was out at breakfast.",
}
