// Package lessons loads the static lesson catalog and picks the next lesson
// for a learner.
package lessons

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/example/tutorbot/pkg/models"
)

//go:embed catalog.toml
var defaultCatalog []byte

// ErrNoContentAvailable is returned when no lesson exists for a level and category
var ErrNoContentAvailable = errors.New("no lesson content available")

type catalogFile struct {
	Lessons []models.Lesson `toml:"lessons"`
}

type key struct {
	level    models.Level
	category string
}

// Catalog is an immutable set of lessons shared by all sessions
type Catalog struct {
	lessons []*models.Lesson
	byID    map[string]*models.Lesson
	byKey   map[key][]*models.Lesson
}

// NewCatalog validates lessons and indexes them by id and by (level, category)
func NewCatalog(lessons []models.Lesson) (*Catalog, error) {
	c := &Catalog{
		byID:  make(map[string]*models.Lesson, len(lessons)),
		byKey: make(map[key][]*models.Lesson),
	}

	for i := range lessons {
		l := lessons[i]
		l.ID = strings.TrimSpace(l.ID)
		l.Category = strings.ToLower(strings.TrimSpace(l.Category))
		if l.ID == "" {
			return nil, fmt.Errorf("lesson %d: id is empty", i+1)
		}
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("lesson %s: duplicate id", l.ID)
		}
		if l.LevelName != "" {
			level, err := models.ParseLevel(l.LevelName)
			if err != nil {
				return nil, fmt.Errorf("lesson %s: %w", l.ID, err)
			}
			l.Level = level
		}
		l.LevelName = l.Level.String()
		if l.Category == "" {
			return nil, fmt.Errorf("lesson %s: category is empty", l.ID)
		}
		if len(l.Exercises) == 0 {
			return nil, fmt.Errorf("lesson %s: no exercises", l.ID)
		}
		for j, ex := range l.Exercises {
			if strings.TrimSpace(ex.Prompt) == "" {
				return nil, fmt.Errorf("lesson %s: exercise %d has an empty prompt", l.ID, j+1)
			}
		}

		lesson := &l
		c.lessons = append(c.lessons, lesson)
		c.byID[l.ID] = lesson
		k := key{level: l.Level, category: l.Category}
		c.byKey[k] = append(c.byKey[k], lesson)
	}

	for _, group := range c.byKey {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}
	sort.Slice(c.lessons, func(i, j int) bool { return c.lessons[i].ID < c.lessons[j].ID })

	return c, nil
}

// Load decodes a TOML catalog
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode lesson catalog: %w", err)
	}
	return NewCatalog(f.Lessons)
}

// LoadFile reads a TOML catalog from disk
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lesson catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the catalog bundled with the binary
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// Encode writes lessons as a TOML catalog
func Encode(w io.Writer, lessons []models.Lesson) error {
	out := catalogFile{Lessons: make([]models.Lesson, len(lessons))}
	for i, l := range lessons {
		l.LevelName = l.Level.String()
		out.Lessons[i] = l
	}
	return toml.NewEncoder(w).Encode(out)
}

// Get returns a lesson by id
func (c *Catalog) Get(id string) (*models.Lesson, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// For returns the lessons of a level and category, ordered by id
func (c *Catalog) For(level models.Level, category string) []*models.Lesson {
	return c.byKey[key{level: level, category: category}]
}

// Lessons returns every lesson in id order
func (c *Catalog) Lessons() []models.Lesson {
	out := make([]models.Lesson, len(c.lessons))
	for i, l := range c.lessons {
		out[i] = *l
	}
	return out
}

// Len returns the number of lessons
func (c *Catalog) Len() int {
	return len(c.lessons)
}
