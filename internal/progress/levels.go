// Package progress holds the pure rules that turn corrected answers into
// mastery scores and mastery scores into proficiency levels.
package progress

import (
	"fmt"
	"sort"

	"github.com/example/tutorbot/pkg/models"
)

// AdvanceThreshold is the mean mastery over a level's required categories
// needed to move to the next level.
const AdvanceThreshold = 80

var requiredCategories = map[models.Level][]string{
	models.LevelBasic:        {"family", "food", "greetings", "numbers"},
	models.LevelIntermediate: {"grammar", "health", "travel", "work"},
	models.LevelAdvanced:     {"business", "idioms", "phrasal_verbs", "writing"},
}

// RequiredCategories returns the categories practiced at a level, sorted by name
func RequiredCategories(level models.Level) []string {
	cats := append([]string(nil), requiredCategories[level]...)
	sort.Strings(cats)
	return cats
}

// Mastery returns the mean score over the level's required categories
func Mastery(level models.Level, scores map[string]int) float64 {
	cats := requiredCategories[level]
	if len(cats) == 0 {
		return 0
	}
	total := 0
	for _, c := range cats {
		total += scores[c]
	}
	return float64(total) / float64(len(cats))
}

// NextLevel returns the level a learner should be at given their scores.
// The result is never below current: levels only advance.
func NextLevel(current models.Level, scores map[string]int) models.Level {
	if current >= models.LevelAdvanced {
		return current
	}
	if Mastery(current, scores) >= AdvanceThreshold {
		return current + 1
	}
	return current
}

// LevelProgress reports how close a learner is to the next level, 0-100.
// Advanced learners are always at 100.
func LevelProgress(level models.Level, scores map[string]int) float64 {
	if level >= models.LevelAdvanced {
		return 100
	}
	pct := Mastery(level, scores) / AdvanceThreshold * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// LevelUpMessage congratulates a learner on reaching a level
func LevelUpMessage(level models.Level) string {
	switch level {
	case models.LevelIntermediate:
		return "🚀 Excellent! You reached the Intermediate level. More interesting challenges are waiting."
	case models.LevelAdvanced:
		return "🏆 Impressive! Advanced level reached. Now we polish your professional English."
	default:
		return "🎉 Congratulations! You are at the Basic level. We start with the fundamentals."
	}
}

// Achievement is a title earned by completing lessons
type Achievement struct {
	Lessons int
	Icon    string
	Title   string
}

var namedAchievements = []Achievement{
	{Lessons: 1, Icon: "🎯", Title: "First Lesson"},
	{Lessons: 5, Icon: "📚", Title: "Dedicated Learner"},
	{Lessons: 10, Icon: "🏆", Title: "Tutor in Training"},
}

// achievementStep spaces the milestones after the last named one
const achievementStep = 5

// AchievementFor returns the achievement earned exactly at the given lesson count
func AchievementFor(lessons int) (Achievement, bool) {
	for _, a := range namedAchievements {
		if a.Lessons == lessons {
			return a, true
		}
	}
	last := namedAchievements[len(namedAchievements)-1].Lessons
	if lessons > last && lessons%achievementStep == 0 {
		return Achievement{Lessons: lessons, Icon: "⭐", Title: fmt.Sprintf("%d Lessons", lessons)}, true
	}
	return Achievement{}, false
}

// Achievements lists everything earned with the given lesson count, oldest first
func Achievements(lessons int) []Achievement {
	var out []Achievement
	for n := 1; n <= lessons; n++ {
		if a, ok := AchievementFor(n); ok {
			out = append(out, a)
		}
	}
	return out
}

// AchievementMessage announces a new achievement
func AchievementMessage(a Achievement) string {
	if a.Lessons == 1 {
		return fmt.Sprintf("%s Achievement unlocked: %s! You completed your first lesson.", a.Icon, a.Title)
	}
	return fmt.Sprintf("%s Achievement unlocked: %s! You have completed %d lessons.", a.Icon, a.Title, a.Lessons)
}
