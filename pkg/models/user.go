package models

import (
	"fmt"
	"strings"
	"time"
)

// Level is the learner's proficiency tier
type Level int

const (
	LevelBasic Level = iota
	LevelIntermediate
	LevelAdvanced
)

// Levels lists all proficiency tiers in ascending order
var Levels = []Level{LevelBasic, LevelIntermediate, LevelAdvanced}

func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelIntermediate:
		return "intermediate"
	case LevelAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Title returns a display name for the level
func (l Level) Title() string {
	switch l {
	case LevelBasic:
		return "Basic"
	case LevelIntermediate:
		return "Intermediate"
	case LevelAdvanced:
		return "Advanced"
	default:
		return "Unknown"
	}
}

// ParseLevel parses a level name, accepting the Spanish labels used by the original sheets
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "básico", "basico":
		return LevelBasic, nil
	case "intermediate", "intermedio":
		return LevelIntermediate, nil
	case "advanced", "avanzado":
		return LevelAdvanced, nil
	default:
		return LevelBasic, fmt.Errorf("unknown level %q", s)
	}
}

// SessionState is where a learner is in the tutoring state machine
type SessionState int

const (
	StateIdle SessionState = iota
	StateInLesson
	StateAwaitingCorrection
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInLesson:
		return "in_lesson"
	case StateAwaitingCorrection:
		return "awaiting_correction"
	default:
		return "unknown"
	}
}

// ParseSessionState parses the stored form of a session state
func ParseSessionState(s string) (SessionState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle", "":
		return StateIdle, nil
	case "in_lesson":
		return StateInLesson, nil
	case "awaiting_correction":
		return StateAwaitingCorrection, nil
	default:
		return StateIdle, fmt.Errorf("unknown session state %q", s)
	}
}

// UserProfile is everything the tutor remembers about one learner
type UserProfile struct {
	UserID           string         `json:"user_id" db:"user_id"`
	Level            Level          `json:"level" db:"level"`
	Scores           map[string]int `json:"scores"`
	State            SessionState   `json:"state" db:"session_state"`
	LessonID         string         `json:"lesson_id" db:"lesson_id"`
	ExerciseIndex    int            `json:"exercise_index" db:"exercise_index"`
	LastLessonID     string         `json:"last_lesson_id" db:"last_lesson_id"`
	LessonsCompleted int            `json:"lessons_completed" db:"lessons_completed"`
	ErrorCategories  map[string]int `json:"error_categories"`
	Version          int64          `json:"version" db:"version"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// NewUserProfile returns the profile of a learner seen for the first time
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:          userID,
		Level:           LevelBasic,
		Scores:          make(map[string]int),
		State:           StateIdle,
		ErrorCategories: make(map[string]int),
	}
}

// Score returns the mastery score for a category, zero if never practiced
func (p *UserProfile) Score(category string) int {
	if p.Scores == nil {
		return 0
	}
	return p.Scores[category]
}

// Clone returns a deep copy so a failed exchange can be discarded
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	c.Scores = make(map[string]int, len(p.Scores))
	for k, v := range p.Scores {
		c.Scores[k] = v
	}
	c.ErrorCategories = make(map[string]int, len(p.ErrorCategories))
	for k, v := range p.ErrorCategories {
		c.ErrorCategories[k] = v
	}
	return &c
}

// SameContent reports whether two profiles hold the same learner data.
// Version and timestamps are bookkeeping and are not compared.
func (p *UserProfile) SameContent(o *UserProfile) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.UserID != o.UserID || p.Level != o.Level || p.State != o.State ||
		p.LessonID != o.LessonID || p.ExerciseIndex != o.ExerciseIndex ||
		p.LastLessonID != o.LastLessonID || p.LessonsCompleted != o.LessonsCompleted {
		return false
	}
	return sameCounts(p.Scores, o.Scores) && sameCounts(p.ErrorCategories, o.ErrorCategories)
}

// sameCounts treats a missing key and a zero value as equal
func sameCounts(a, b map[string]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}
