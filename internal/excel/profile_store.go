package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/tutorbot/internal/session"
	"github.com/example/tutorbot/pkg/models"
)

// UsersSheet is the worksheet holding one row per learner
const UsersSheet = "users"

// Column prefixes for per-category columns
const (
	scorePrefix = "score:"
	errorPrefix = "errors:"
)

var baseColumns = []string{
	"user_id", "level", "session_state", "lesson_id", "exercise_index",
	"last_lesson_id", "lessons_completed", "version", "created_at", "updated_at",
}

// ProfileStore keeps learner profiles in an xlsx workbook: one row per
// learner, one column per field and per category. New categories add columns;
// existing columns are never removed.
type ProfileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewProfileStore creates a store backed by the workbook at path.
// The workbook is created on first save.
func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// sheet is the decoded users worksheet
type sheet struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func (sh *sheet) cell(row []string, column string) string {
	i, ok := sh.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// find returns the 0-based data row index of a user, or -1
func (sh *sheet) find(userID string) int {
	for i, row := range sh.rows {
		if sh.cell(row, "user_id") == userID {
			return i
		}
	}
	return -1
}

func (sh *sheet) addColumn(name string) int {
	if i, ok := sh.index[name]; ok {
		return i
	}
	sh.header = append(sh.header, name)
	sh.index[name] = len(sh.header) - 1
	return len(sh.header) - 1
}

// open loads the workbook, or a new one with the header row if it does not exist
func (s *ProfileStore) open() (*excelize.File, *sheet, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", UsersSheet); err != nil {
			return nil, nil, err
		}
		sh := &sheet{index: make(map[string]int)}
		for _, c := range baseColumns {
			sh.addColumn(c)
		}
		return f, sh, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	rows, err := f.GetRows(UsersSheet)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to get rows: %w", err)
	}

	sh := &sheet{index: make(map[string]int)}
	if len(rows) > 0 {
		for _, name := range rows[0] {
			sh.addColumn(strings.TrimSpace(name))
		}
		sh.rows = rows[1:]
	}
	for _, c := range baseColumns {
		sh.addColumn(c)
	}
	return f, sh, nil
}

// Get returns the learner's profile, or a new one with Version 0
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, sh, err := s.open()
	if err != nil {
		return nil, unavailable(err)
	}
	defer f.Close()

	i := sh.find(userID)
	if i < 0 {
		return models.NewUserProfile(userID), nil
	}
	p, err := sh.decode(sh.rows[i])
	if err != nil {
		return nil, unavailable(err)
	}
	return p, nil
}

// Save writes p if the stored version still equals p.Version
func (s *ProfileStore) Save(ctx context.Context, p *models.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, sh, err := s.open()
	if err != nil {
		return unavailable(err)
	}
	defer f.Close()

	i := sh.find(p.UserID)
	var stored *models.UserProfile
	if i >= 0 {
		if stored, err = sh.decode(sh.rows[i]); err != nil {
			return unavailable(err)
		}
	}

	var current int64
	if stored != nil {
		current = stored.Version
	}
	if current != p.Version {
		return fmt.Errorf("user %s: stored version %d, have %d: %w", p.UserID, current, p.Version, session.ErrConflict)
	}
	if stored != nil && stored.SameContent(p) {
		return nil
	}

	now := s.now()
	createdAt := now
	if stored != nil {
		createdAt = stored.CreatedAt
	}
	if i < 0 {
		sh.rows = append(sh.rows, nil)
		i = len(sh.rows) - 1
	}

	values := map[string]any{
		"user_id":           p.UserID,
		"level":             p.Level.String(),
		"session_state":     p.State.String(),
		"lesson_id":         p.LessonID,
		"exercise_index":    p.ExerciseIndex,
		"last_lesson_id":    p.LastLessonID,
		"lessons_completed": p.LessonsCompleted,
		"version":           p.Version + 1,
		"created_at":        createdAt.Format(time.RFC3339Nano),
		"updated_at":        now.Format(time.RFC3339Nano),
	}
	for cat, v := range p.Scores {
		values[scorePrefix+cat] = v
	}
	for cat, v := range p.ErrorCategories {
		values[errorPrefix+cat] = v
	}

	// header first so new category columns exist
	for name := range values {
		sh.addColumn(name)
	}
	for col, name := range sh.header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(UsersSheet, cell, name); err != nil {
			return unavailable(err)
		}
	}
	for name, v := range values {
		cell, err := excelize.CoordinatesToCellName(sh.index[name]+1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(UsersSheet, cell, v); err != nil {
			return unavailable(err)
		}
	}

	if err := s.write(f); err != nil {
		return unavailable(err)
	}

	p.Version++
	p.CreatedAt = createdAt
	p.UpdatedAt = now
	return nil
}

// write saves to a temporary file and renames it over the workbook
func (s *ProfileStore) write(f *excelize.File) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// List returns every profile ordered by user id
func (s *ProfileStore) List(ctx context.Context) ([]*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, sh, err := s.open()
	if err != nil {
		return nil, unavailable(err)
	}
	defer f.Close()

	out := make([]*models.UserProfile, 0, len(sh.rows))
	for _, row := range sh.rows {
		if sh.cell(row, "user_id") == "" {
			continue
		}
		p, err := sh.decode(row)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Stalled returns learners who left a lesson unfinished before the given time
func (s *ProfileStore) Stalled(ctx context.Context, before time.Time) ([]*models.UserProfile, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.UserProfile
	for _, p := range all {
		if p.State != models.StateIdle && p.UpdatedAt.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CountByLevel returns how many learners are at each level
func (s *ProfileStore) CountByLevel(ctx context.Context) (map[models.Level]int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Level]int)
	for _, p := range all {
		out[p.Level]++
	}
	return out, nil
}

// Backup copies the workbook into dir with a timestamped name
func (s *ProfileStore) Backup(ctx context.Context, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.xlsx", name, s.now().Format("20060102-150405")))
	if err := f.SaveAs(dest); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return dest, nil
}

func (sh *sheet) decode(row []string) (*models.UserProfile, error) {
	userID := sh.cell(row, "user_id")
	level, err := models.ParseLevel(sh.cell(row, "level"))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	state, err := models.ParseSessionState(sh.cell(row, "session_state"))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}

	p := models.NewUserProfile(userID)
	p.Level = level
	p.State = state
	p.LessonID = sh.cell(row, "lesson_id")
	p.ExerciseIndex = atoi(sh.cell(row, "exercise_index"))
	p.LastLessonID = sh.cell(row, "last_lesson_id")
	p.LessonsCompleted = atoi(sh.cell(row, "lessons_completed"))
	p.Version = int64(atoi(sh.cell(row, "version")))
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, sh.cell(row, "created_at"))
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, sh.cell(row, "updated_at"))

	for name, i := range sh.index {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(name, scorePrefix):
			p.Scores[strings.TrimPrefix(name, scorePrefix)] = atoi(row[i])
		case strings.HasPrefix(name, errorPrefix):
			p.ErrorCategories[strings.TrimPrefix(name, errorPrefix)] = atoi(row[i])
		}
	}
	return p, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func unavailable(err error) error {
	return fmt.Errorf("workbook: %w: %w", session.ErrStorageUnavailable, err)
}
