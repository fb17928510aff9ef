package lessons

import (
	"fmt"

	"github.com/example/tutorbot/internal/progress"
	"github.com/example/tutorbot/pkg/models"
)

// Selector picks the next lesson for a learner. It holds no mutable state,
// so the same profile always yields the same lesson.
type Selector struct {
	catalog *Catalog
}

// NewSelector creates a selector over a catalog
func NewSelector(catalog *Catalog) *Selector {
	return &Selector{catalog: catalog}
}

// Catalog returns the catalog the selector reads from
func (s *Selector) Catalog() *Catalog {
	return s.catalog
}

// WeakestCategory returns the required category with the lowest score.
// Ties go to the lexically smallest name.
func WeakestCategory(level models.Level, scores map[string]int) string {
	weakest := ""
	best := 0
	for _, c := range progress.RequiredCategories(level) {
		score := scores[c]
		if weakest == "" || score < best {
			weakest, best = c, score
		}
	}
	return weakest
}

// Next returns the lesson to present to the learner.
// Within the chosen category, lessons rotate in id order starting after
// the learner's last completed lesson.
func (s *Selector) Next(p *models.UserProfile) (*models.Lesson, error) {
	category := WeakestCategory(p.Level, p.Scores)
	if category == "" {
		return nil, fmt.Errorf("level %s: %w", p.Level, ErrNoContentAvailable)
	}

	group := s.catalog.For(p.Level, category)
	if len(group) == 0 {
		return nil, fmt.Errorf("level %s category %s: %w", p.Level, category, ErrNoContentAvailable)
	}

	for i, l := range group {
		if l.ID == p.LastLessonID {
			return group[(i+1)%len(group)], nil
		}
	}
	return group[0], nil
}

// Lesson looks up a lesson by id
func (s *Selector) Lesson(id string) (*models.Lesson, bool) {
	return s.catalog.Get(id)
}
