package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/tutorbot/internal/session"
	"github.com/example/tutorbot/pkg/models"
)

func TestProfileStore_SaveCreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.xlsx")
	s := NewProfileStore(path)
	ctx := context.Background()

	p, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.EqualValues(t, 0, p.Version)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "Get does not create the workbook")

	p.State = models.StateInLesson
	p.LessonID = "basic-food-01"
	p.Scores["food"] = 15
	p.ErrorCategories["grammar"] = 2
	require.NoError(t, s.Save(ctx, p))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(UsersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "score:food")
	assert.Contains(t, rows[0], "errors:grammar")

	got, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, got.SameContent(p))
	assert.EqualValues(t, 1, got.Version)
}

func TestProfileStore_RoundTripIsNoop(t *testing.T) {
	s := NewProfileStore(filepath.Join(t.TempDir(), "users.xlsx"))
	ctx := context.Background()

	p := models.NewUserProfile("u1")
	p.Scores["family"] = 20
	require.NoError(t, s.Save(ctx, p))

	loaded, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, loaded))

	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.Version)
}

func TestProfileStore_ConflictAndMerge(t *testing.T) {
	s := NewProfileStore(filepath.Join(t.TempDir(), "users.xlsx"))
	ctx := context.Background()

	p := models.NewUserProfile("u1")
	p.Scores["family"] = 30
	require.NoError(t, s.Save(ctx, p))

	stale := p.Clone()
	stale.Version = 0
	assert.True(t, errors.Is(s.Save(ctx, stale), session.ErrConflict))

	p.Scores = map[string]int{"food": 5}
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Score("family"))
	assert.Equal(t, 5, got.Score("food"))
	assert.EqualValues(t, 2, got.Version)
}

func TestProfileStore_ListStalledAndBackup(t *testing.T) {
	dir := t.TempDir()
	s := NewProfileStore(filepath.Join(dir, "users.xlsx"))
	ctx := context.Background()

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	past := time.Now().UTC().Add(-2 * time.Hour)
	s.now = func() time.Time { return past }
	for _, id := range []string{"b", "a"} {
		p := models.NewUserProfile(id)
		if id == "a" {
			p.State = models.StateInLesson
			p.LessonID = "basic-family-01"
		}
		require.NoError(t, s.Save(ctx, p))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)

	stalled, err := s.Stalled(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "a", stalled[0].UserID)

	counts, err := s.CountByLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.LevelBasic])

	backup, err := s.Backup(ctx, filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.FileExists(t, backup)
	assert.Contains(t, filepath.Base(backup), "users-")
}

func TestProfileStore_UnreadableWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0644))

	_, err := NewProfileStore(path).Get(context.Background(), "u1")
	assert.True(t, errors.Is(err, session.ErrStorageUnavailable))
}

func TestProfileStore_BadRowIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(UsersSheet)
	require.NoError(t, err)
	header := make([]any, len(baseColumns))
	for i, c := range baseColumns {
		header[i] = c
	}
	require.NoError(t, f.SetSheetRow(UsersSheet, "A1", &header))
	require.NoError(t, f.SetSheetRow(UsersSheet, "A2", &[]any{"u1", "expert", "idle"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	store := NewProfileStore(path)
	ctx := context.Background()

	_, err = store.Get(ctx, "u1")
	assert.True(t, errors.Is(err, session.ErrStorageUnavailable))

	p := models.NewUserProfile("u1")
	p.Version = 1
	err = store.Save(ctx, p)
	assert.True(t, errors.Is(err, session.ErrStorageUnavailable))
	assert.False(t, errors.Is(err, session.ErrConflict))

	_, err = store.List(ctx)
	assert.True(t, errors.Is(err, session.ErrStorageUnavailable))
}

func writeVocabulary(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestImportLessons_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.xlsx")
	writeVocabulary(t, path, [][]any{
		{"word", "translation", "example", "category", "level"},
		{"apple", "manzana", "I eat an apple every day.", "Food", "basic"},
		{"bread", "pan", "", "food", ""},
		{"cheese", "queso", "Cheese is made from milk.", "food", "básico"},
		{"", "vacío", "", "food", ""},
		{"deadline", "plazo", "The deadline is Friday.", "Work", "intermedio"},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.ExercisesPerLesson = 2

	res, err := ImportLessons(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalProcessed)
	assert.Equal(t, 4, res.Words)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Lessons, 3)

	first := res.Lessons[0]
	assert.Equal(t, "basic-food-vocab-01", first.ID)
	assert.Equal(t, "food", first.Category)
	assert.Equal(t, "Food vocabulary 1", first.Title)
	require.Len(t, first.Exercises, 2)
	assert.Equal(t, "Complete the sentence: I eat an _____ every day. (hint: manzana)", first.Exercises[0].Prompt)
	assert.Equal(t, "apple", first.Exercises[0].Answer)
	assert.Contains(t, first.Exercises[1].Prompt, `"bread"`)

	assert.Equal(t, "basic-food-vocab-02", res.Lessons[1].ID)
	assert.Equal(t, models.LevelIntermediate, res.Lessons[2].Level)
	assert.Equal(t, "intermediate-work-vocab-01", res.Lessons[2].ID)
}

func TestImportLessons_CSVCategoryHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.csv")
	content := "word,translation,example\n" +
		"Travel,,\n" +
		"go (went gone),ir,We go to the airport.\n" +
		"ticket,billete,\n" +
		"Phrasal verbs,,\n" +
		"give up,rendirse,Never give up.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.CategoryColumn = ""
	cfg.LevelColumn = ""

	res, err := ImportLessons(cfg)
	require.NoError(t, err)
	require.Len(t, res.Lessons, 2)

	assert.Equal(t, "basic-phrasal-verbs-vocab-01", res.Lessons[0].ID)
	assert.Equal(t, "phrasal_verbs", res.Lessons[0].Category)
	assert.Equal(t, "travel", res.Lessons[1].Category)
	require.Len(t, res.Lessons[1].Exercises, 2)
	assert.Equal(t, "go", res.Lessons[1].Exercises[0].Answer)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 4, columnToIndex("e"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
