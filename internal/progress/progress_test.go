package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/tutorbot/pkg/models"
)

func errs(n int) []models.ErrorSpan {
	out := make([]models.ErrorSpan, n)
	for i := range out {
		out[i] = models.ErrorSpan{Start: i, End: i + 1, Category: "grammar"}
	}
	return out
}

func TestScoreDelta(t *testing.T) {
	tests := []struct {
		name       string
		errors     int
		confidence float64
		want       int
	}{
		{"perfect", 0, 0.9, 10},
		{"one error", 1, 0.9, 5},
		{"two errors", 2, 0.9, 0},
		{"many errors", 5, 0.9, -5},
		{"perfect low confidence", 0, 0.3, 5},
		{"poor low confidence", 3, 0.1, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &models.CorrectionResult{Errors: errs(tt.errors), Confidence: tt.confidence}
			assert.Equal(t, tt.want, ScoreDelta(r))
		})
	}
}

func TestApplyScore_Clamps(t *testing.T) {
	assert.Equal(t, 0, ApplyScore(3, -5))
	assert.Equal(t, 100, ApplyScore(95, 10))
	assert.Equal(t, 55, ApplyScore(50, 5))
}

func TestRecordAnswer(t *testing.T) {
	p := models.NewUserProfile("u1")
	r := &models.CorrectionResult{
		Errors: []models.ErrorSpan{
			{Category: "grammar"},
			{Category: ""},
		},
		Confidence: 0.8,
	}

	RecordAnswer(p, "food", r)

	assert.Equal(t, 0, p.Scores["food"])
	assert.Equal(t, 1, p.ErrorCategories["grammar"])
	assert.Equal(t, 1, p.ErrorCategories["other"])
}

func TestNextLevel(t *testing.T) {
	basicDone := map[string]int{"family": 80, "food": 80, "greetings": 80, "numbers": 80}
	basicAlmost := map[string]int{"family": 100, "food": 100, "greetings": 100, "numbers": 19}

	assert.Equal(t, models.LevelIntermediate, NextLevel(models.LevelBasic, basicDone))
	assert.Equal(t, models.LevelBasic, NextLevel(models.LevelBasic, basicAlmost))
	assert.Equal(t, models.LevelAdvanced, NextLevel(models.LevelAdvanced, nil))
}

func TestNextLevel_NeverRegresses(t *testing.T) {
	seqs := []map[string]int{
		{},
		{"family": 100, "food": 100, "greetings": 100, "numbers": 100},
		{"grammar": 0},
		{"grammar": 100, "health": 100, "travel": 100, "work": 100},
		{},
	}
	level := models.LevelBasic
	for _, scores := range seqs {
		next := NextLevel(level, scores)
		assert.GreaterOrEqual(t, int(next), int(level))
		level = next
	}
	assert.Equal(t, models.LevelAdvanced, level)
}

func TestRequiredCategories_Sorted(t *testing.T) {
	for _, l := range models.Levels {
		cats := RequiredCategories(l)
		assert.IsNonDecreasing(t, cats)
		assert.NotEmpty(t, cats)
	}
}

func TestLevelProgress(t *testing.T) {
	assert.Equal(t, 50.0, LevelProgress(models.LevelBasic, map[string]int{"family": 80, "food": 80}))
	assert.Equal(t, 100.0, LevelProgress(models.LevelAdvanced, nil))
	assert.Equal(t, 100.0, LevelProgress(models.LevelBasic, map[string]int{"family": 100, "food": 100, "greetings": 100, "numbers": 100}))
}

func TestAchievementFor(t *testing.T) {
	tests := []struct {
		lessons int
		title   string
	}{
		{1, "First Lesson"},
		{2, ""},
		{5, "Dedicated Learner"},
		{10, "Tutor in Training"},
		{12, ""},
		{15, "15 Lessons"},
		{20, "20 Lessons"},
	}
	for _, tt := range tests {
		a, ok := AchievementFor(tt.lessons)
		assert.Equal(t, tt.title != "", ok, "lessons=%d", tt.lessons)
		assert.Equal(t, tt.title, a.Title, "lessons=%d", tt.lessons)
	}
}

func TestAchievements(t *testing.T) {
	assert.Empty(t, Achievements(0))

	earned := Achievements(15)
	if assert.Len(t, earned, 4) {
		assert.Equal(t, "First Lesson", earned[0].Title)
		assert.Equal(t, "15 Lessons", earned[3].Title)
	}

	msg := AchievementMessage(earned[1])
	assert.Contains(t, msg, "Dedicated Learner")
	assert.Contains(t, msg, "5 lessons")
}
