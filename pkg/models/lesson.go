package models

// Exercise is one prompt inside a lesson
type Exercise struct {
	Prompt string `json:"prompt" toml:"prompt"`
	// Answer is an optional reference answer shown after correction
	Answer string `json:"answer,omitempty" toml:"answer,omitempty"`
}

// Lesson is a static content unit for one level and category
type Lesson struct {
	ID        string     `json:"id" toml:"id"`
	Level     Level      `json:"level" toml:"-"`
	LevelName string     `json:"-" toml:"level"`
	Category  string     `json:"category" toml:"category"`
	Title     string     `json:"title" toml:"title"`
	Exercises []Exercise `json:"exercises" toml:"exercises"`
}
