package tasks

import (
	"errors"

	"github.com/google/uuid"

	"stayHardAPI/internal/challenge"
	"stayHardAPI/internal/progress"
)

var ErrInvalidLevel = errors.New("invalid challenge level")

var softTasks = []string{
	"Eat healthy & balanced diet",
	"45-min exercise (5 days/week)",
	"Drink 3 liters of water",
	"Read 10 pages (nonfiction)",
	"Practice mindfulness/reflection",
}

var hardTasks = []string{
	"Follow strict diet (no cheats/alcohol)",
	"Two 45-min workouts (1 outdoor)",
	"Drink 1 gallon of water",
	"Read 10 pages (nonfiction book)",
	"Take daily progress picture",
	"No cheat meals or alcohol",
}

// Catalog holds the fixed task text lists per difficulty level. It is
// injected into the services so tests can substitute smaller templates.
type Catalog struct {
	templates map[challenge.Level][]string
}

func NewCatalog(templates map[challenge.Level][]string) *Catalog {
	return &Catalog{templates: templates}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(map[challenge.Level][]string{
		challenge.LevelSoft: softTasks,
		challenge.LevelHard: hardTasks,
	})
}

// Instantiate builds a fresh, all-incomplete daily task list for the given
// level. Soft and Hard use the catalog texts with newly generated ids.
// Custom uses the caller-supplied template verbatim, assigning ids only
// where the template omits them.
func (c *Catalog) Instantiate(level challenge.Level, custom []challenge.TaskSpec) ([]progress.Task, error) {
	if level == challenge.LevelCustom {
		out := make([]progress.Task, 0, len(custom))
		for _, spec := range custom {
			id := spec.ID
			if id == "" {
				id = uuid.New().String()
			}
			out = append(out, progress.Task{ID: id, Text: spec.Text})
		}
		return out, nil
	}

	texts, ok := c.templates[level]
	if !ok {
		return nil, ErrInvalidLevel
	}

	out := make([]progress.Task, 0, len(texts))
	for _, text := range texts {
		out = append(out, progress.Task{ID: uuid.New().String(), Text: text})
	}
	return out, nil
}
