// Package content builds the seed catalogs that are loaded into the database
// before the API serves requests.
package content

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/gosimple/slug"

	"github.com/noah-isme/questkids-api/internal/models"
)

// Archetype is a hobby family the generator expands into per-age tracks.
type Archetype struct {
	Name     string
	Category string
	Icon     string
	Verbs    []string
}

// Options tunes the generator. Zero values fall back to the defaults.
type Options struct {
	Archetypes    []Archetype
	AgeBrackets   []string
	MinArchetypes int
	MinLevels     int
	MaxLevels     int
	MinTasks      int
	MaxTasks      int
	MinMinutes    int
	MaxMinutes    int
}

// DefaultAgeBrackets are the age groups every hobby is produced for.
var DefaultAgeBrackets = []string{"4-6", "7-9", "10-12"}

// DefaultArchetypes is the base hobby catalog.
var DefaultArchetypes = []Archetype{
	{Name: "Drawing", Category: "Art", Icon: "🎨", Verbs: []string{"Sketch", "Color", "Trace", "Shade"}},
	{Name: "Music", Category: "Art", Icon: "🎵", Verbs: []string{"Clap", "Hum", "Play", "Compose"}},
	{Name: "Gardening", Category: "Nature", Icon: "🌱", Verbs: []string{"Plant", "Water", "Observe", "Harvest"}},
	{Name: "Cooking", Category: "Life Skills", Icon: "🍳", Verbs: []string{"Mix", "Measure", "Taste", "Decorate"}},
	{Name: "Coding", Category: "Science", Icon: "💻", Verbs: []string{"Sequence", "Debug", "Loop", "Build"}},
	{Name: "Reading", Category: "Language", Icon: "📚", Verbs: []string{"Read", "Retell", "Summarize", "Predict"}},
	{Name: "Astronomy", Category: "Science", Icon: "🔭", Verbs: []string{"Spot", "Map", "Track", "Name"}},
	{Name: "Dancing", Category: "Sport", Icon: "💃", Verbs: []string{"Stretch", "Step", "Spin", "Perform"}},
	{Name: "Origami", Category: "Art", Icon: "🦢", Verbs: []string{"Fold", "Crease", "Shape", "Assemble"}},
}

func (o Options) withDefaults() Options {
	if len(o.Archetypes) == 0 {
		o.Archetypes = DefaultArchetypes
	}
	if len(o.AgeBrackets) == 0 {
		o.AgeBrackets = DefaultAgeBrackets
	}
	if o.MinArchetypes <= 0 {
		o.MinArchetypes = 12
	}
	if o.MinLevels <= 0 {
		o.MinLevels = 2
	}
	if o.MaxLevels < o.MinLevels {
		o.MaxLevels = max(4, o.MinLevels)
	}
	if o.MinTasks <= 0 {
		o.MinTasks = 20
	}
	if o.MaxTasks < o.MinTasks {
		o.MaxTasks = max(30, o.MinTasks)
	}
	if o.MinMinutes <= 0 {
		o.MinMinutes = 5
	}
	if o.MaxMinutes < o.MinMinutes {
		o.MaxMinutes = max(30, o.MinMinutes)
	}
	return o
}

// Generate cross-produces one hobby per archetype per age bracket. The random
// source decides level and task counts and durations, so a seeded rng yields a
// reproducible catalog.
func Generate(rng *rand.Rand, opts Options) []models.Hobby {
	opts = opts.withDefaults()
	archetypes := PadArchetypes(opts.Archetypes, opts.MinArchetypes)

	hobbies := make([]models.Hobby, 0, len(archetypes)*len(opts.AgeBrackets))
	for _, archetype := range archetypes {
		for _, bracket := range opts.AgeBrackets {
			hobbies = append(hobbies, buildHobby(rng, opts, archetype, bracket))
		}
	}
	return hobbies
}

var placeholderVerbs = []string{"Try", "Practice", "Explore"}

// PadArchetypes appends generic placeholder archetypes until the catalog reaches min entries.
// Archetypes without verbs get the placeholder verbs; base is not modified.
func PadArchetypes(base []Archetype, min int) []Archetype {
	result := make([]Archetype, len(base), max(len(base), min))
	copy(result, base)
	for i := range result {
		if len(result[i].Verbs) == 0 {
			result[i].Verbs = placeholderVerbs
		}
	}
	for i := len(base) + 1; len(result) < min; i++ {
		result = append(result, Archetype{
			Name:     fmt.Sprintf("Hobby %d", i),
			Category: "General",
			Icon:     "⭐",
			Verbs:    placeholderVerbs,
		})
	}
	return result
}

func buildHobby(rng *rand.Rand, opts Options, archetype Archetype, bracket string) models.Hobby {
	id := slug.Make(archetype.Name + " " + bracket)
	levelCount := between(rng, opts.MinLevels, opts.MaxLevels)

	levels := make([]models.HobbyLevel, 0, levelCount)
	for number := 1; number <= levelCount; number++ {
		taskCount := between(rng, opts.MinTasks, opts.MaxTasks)
		tasks := make([]models.HobbyTask, 0, taskCount)
		for n := 1; n <= taskCount; n++ {
			verb := archetype.Verbs[(n-1)%len(archetype.Verbs)]
			tasks = append(tasks, models.HobbyTask{
				ID:               fmt.Sprintf("%s-l%d-t%d", id, number, n),
				Title:            fmt.Sprintf("%s challenge %d", verb, n),
				Description:      fmt.Sprintf("%s something new in %s, level %d. Ask a grown-up if you need help!", verb, strings.ToLower(archetype.Name), number),
				EstimatedMinutes: between(rng, opts.MinMinutes, opts.MaxMinutes),
			})
		}
		levels = append(levels, models.HobbyLevel{
			Number: number,
			Title:  fmt.Sprintf("%s level %d", archetype.Name, number),
			Tasks:  tasks,
		})
	}

	return models.Hobby{
		ID:          id,
		Name:        archetype.Name,
		Category:    archetype.Category,
		Icon:        archetype.Icon,
		AgeBracket:  bracket,
		Description: fmt.Sprintf("%s activities for ages %s.", archetype.Name, bracket),
		Levels:      levels,
	}
}

func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
