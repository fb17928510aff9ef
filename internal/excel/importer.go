package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/tutorbot/internal/lessons"
	"github.com/example/tutorbot/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath           string // Path to the Excel or CSV file
	WordColumn         string // Column with the word
	TranslationColumn  string // Column with the translation
	ExampleColumn      string // Column with an example sentence
	CategoryColumn     string // Column with the category
	LevelColumn        string // Column with the level
	SheetName          string // Name of the sheet to import
	StartRow           int    // The row to start importing from (1-based index)
	ExercisesPerLesson int    // Words grouped into one lesson
	DefaultLevel       models.Level
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:         "A",
		TranslationColumn:  "B",
		ExampleColumn:      "C",
		CategoryColumn:     "D",
		LevelColumn:        "E",
		SheetName:          "Sheet1",
		StartRow:           2, // By default, start from the second row (skip header)
		ExercisesPerLesson: 5,
		DefaultLevel:       models.LevelBasic,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Words          int
	Skipped        int
	Lessons        []models.Lesson
	Errors         []string
}

// vocabularyWord is one usable row of a vocabulary sheet
type vocabularyWord struct {
	word        string
	translation string
	example     string
	category    string
	level       models.Level
}

type group struct {
	level    models.Level
	category string
}

// ImportLessons builds vocabulary lessons from an Excel or CSV word list
func ImportLessons(config ImportConfig) (*ImportResult, error) {
	if config.ExercisesPerLesson <= 0 {
		config.ExercisesPerLesson = DefaultImportConfig().ExercisesPerLesson
	}

	var (
		words  []vocabularyWord
		result *ImportResult
		err    error
	)
	// Check the file extension
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		words, result, err = readCSV(config)
	} else {
		words, result, err = readExcel(config)
	}
	if err != nil {
		return nil, err
	}

	result.Words = len(words)
	result.Lessons = buildLessons(words, config.ExercisesPerLesson)
	if len(result.Lessons) > 0 {
		// the generated lessons must pass the same checks as the catalog
		if _, err := lessons.NewCatalog(result.Lessons); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// readExcel reads words from an Excel file
func readExcel(config ImportConfig) ([]vocabularyWord, *ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	var words []vocabularyWord
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++

		w, err := parseRow(row, config, "")
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		words = append(words, w)
	}
	return words, result, nil
}

// readCSV reads words from a CSV file. A row with only its first cell filled
// starts a new category for the rows below it.
func readCSV(config ImportConfig) ([]vocabularyWord, *ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	var words []vocabularyWord
	rowNum := 0
	currentCategory := ""

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}

		if isCategoryHeader(row) {
			currentCategory = strings.Trim(strings.TrimSpace(row[0]), "\"")
			continue
		}
		result.TotalProcessed++

		w, err := parseRow(row, config, currentCategory)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		words = append(words, w)
	}
	return words, result, nil
}

// isCategoryHeader reports rows like "Travel,," that name a category
func isCategoryHeader(row []string) bool {
	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		return false
	}
	for _, c := range row[1:] {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, config ImportConfig, fallbackCategory string) (vocabularyWord, error) {
	get := func(column string) string {
		if column == "" {
			return ""
		}
		if i := columnToIndex(column); i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	w := vocabularyWord{
		word:        cleanWord(get(config.WordColumn)),
		translation: cleanWord(get(config.TranslationColumn)),
		example:     get(config.ExampleColumn),
		category:    normalizeCategory(get(config.CategoryColumn)),
		level:       config.DefaultLevel,
	}
	if w.word == "" {
		return w, fmt.Errorf("word cannot be empty")
	}
	if w.translation == "" {
		return w, fmt.Errorf("translation cannot be empty")
	}
	if w.category == "" {
		w.category = normalizeCategory(fallbackCategory)
	}
	if w.category == "" {
		return w, fmt.Errorf("category cannot be empty")
	}
	if raw := get(config.LevelColumn); raw != "" {
		level, err := models.ParseLevel(raw)
		if err != nil {
			return w, err
		}
		w.level = level
	}
	return w, nil
}

// buildLessons groups words by level and category, in file order, into
// lessons of at most size exercises
func buildLessons(words []vocabularyWord, size int) []models.Lesson {
	groups := make(map[group][]vocabularyWord)
	var order []group
	for _, w := range words {
		g := group{level: w.level, category: w.category}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], w)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].level != order[j].level {
			return order[i].level < order[j].level
		}
		return order[i].category < order[j].category
	})

	var out []models.Lesson
	for _, g := range order {
		ws := groups[g]
		for start, n := 0, 1; start < len(ws); start, n = start+size, n+1 {
			end := min(start+size, len(ws))
			lesson := models.Lesson{
				ID:       fmt.Sprintf("%s-%s-vocab-%02d", g.level, strings.ReplaceAll(g.category, "_", "-"), n),
				Level:    g.level,
				Category: g.category,
				Title:    fmt.Sprintf("%s vocabulary %d", titleCase(g.category), n),
			}
			for _, w := range ws[start:end] {
				if w.example != "" {
					lesson.Exercises = append(lesson.Exercises, lessons.BlankExercise(w.example, w.word, w.translation))
				} else {
					lesson.Exercises = append(lesson.Exercises, lessons.TranslationExercise(w.word, w.translation))
				}
			}
			out = append(out, lesson)
		}
	}
	return out
}

// cleanWord removes extra information in parentheses, e.g. "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.Join(strings.Fields(strings.ReplaceAll(c, "-", " ")), "_")
}

func titleCase(category string) string {
	s := strings.ReplaceAll(category, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// columnToIndex converts an Excel column letter to a 0-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
