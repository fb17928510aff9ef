package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/example/tutorbot/internal/session"
	"github.com/example/tutorbot/pkg/models"
)

var profileColumns = []string{
	"user_id", "level", "session_state", "lesson_id", "exercise_index",
	"last_lesson_id", "lessons_completed", "version", "created_at", "updated_at",
}

type profileRow struct {
	UserID           string    `db:"user_id"`
	Level            string    `db:"level"`
	SessionState     string    `db:"session_state"`
	LessonID         string    `db:"lesson_id"`
	ExerciseIndex    int       `db:"exercise_index"`
	LastLessonID     string    `db:"last_lesson_id"`
	LessonsCompleted int       `db:"lessons_completed"`
	Version          int64     `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type countRow struct {
	UserID   string `db:"user_id"`
	Category string `db:"category"`
	Value    int    `db:"value"`
}

// ProfileStore keeps learner profiles in SQL tables: one row per learner in
// profiles, one row per (learner, category) in category_scores and error_categories.
type ProfileStore struct {
	db  *sqlx.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

// NewProfileStore creates a store on a migrated database
func NewProfileStore(db *sqlx.DB) *ProfileStore {
	var format sq.PlaceholderFormat = sq.Question
	if db.DriverName() == DriverPostgres {
		format = sq.Dollar
	}
	return &ProfileStore{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(format),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the learner's profile, or a new one with Version 0
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := s.load(ctx, s.db, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewUserProfile(userID), nil
	}
	if err != nil {
		return nil, unavailable("get profile", err)
	}
	return p, nil
}

func (s *ProfileStore) load(ctx context.Context, q sqlx.QueryerContext, userID string) (*models.UserProfile, error) {
	query, args, err := s.sb.Select(profileColumns...).From("profiles").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, err
	}
	var row profileRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return nil, err
	}

	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	if p.Scores, err = s.counts(ctx, q, "category_scores", "score", userID); err != nil {
		return nil, err
	}
	if p.ErrorCategories, err = s.counts(ctx, q, "error_categories", "occurrences", userID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) counts(ctx context.Context, q sqlx.QueryerContext, table, column, userID string) (map[string]int, error) {
	query, args, err := s.sb.Select("category", column+" AS value").From(table).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Category] = r.Value
	}
	return out, nil
}

// Save writes p if the stored version still equals p.Version.
// Saving unchanged content is a no-op.
func (s *ProfileStore) Save(ctx context.Context, p *models.UserProfile) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	stored, err := s.load(ctx, tx, p.UserID)
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return unavailable("load for save", err)
	}

	var current int64
	if found {
		current = stored.Version
	}
	if current != p.Version {
		return fmt.Errorf("user %s: stored version %d, have %d: %w", p.UserID, current, p.Version, session.ErrConflict)
	}
	if found && stored.SameContent(p) {
		return nil
	}

	now := s.now()
	createdAt := now
	if found {
		createdAt = stored.CreatedAt
	}

	var query sq.Sqlizer
	if found {
		query = s.sb.Update("profiles").
			Set("level", p.Level.String()).
			Set("session_state", p.State.String()).
			Set("lesson_id", p.LessonID).
			Set("exercise_index", p.ExerciseIndex).
			Set("last_lesson_id", p.LastLessonID).
			Set("lessons_completed", p.LessonsCompleted).
			Set("version", p.Version+1).
			Set("updated_at", now).
			Where(sq.Eq{"user_id": p.UserID, "version": p.Version})
	} else {
		query = s.sb.Insert("profiles").
			Columns(profileColumns...).
			Values(p.UserID, p.Level.String(), p.State.String(), p.LessonID, p.ExerciseIndex,
				p.LastLessonID, p.LessonsCompleted, int64(1), createdAt, now).
			Suffix("ON CONFLICT (user_id) DO NOTHING")
	}
	if err := s.execOne(ctx, tx, query, p); err != nil {
		return err
	}

	if err := s.upsertCounts(ctx, tx, "category_scores", "score", p.UserID, p.Scores); err != nil {
		return unavailable("save scores", err)
	}
	if err := s.upsertCounts(ctx, tx, "error_categories", "occurrences", p.UserID, p.ErrorCategories); err != nil {
		return unavailable("save error categories", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}

	p.Version++
	p.CreatedAt = createdAt
	p.UpdatedAt = now
	return nil
}

// execOne runs a versioned write; zero affected rows means another writer won
func (s *ProfileStore) execOne(ctx context.Context, tx *sqlx.Tx, query sq.Sqlizer, p *models.UserProfile) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return unavailable("save profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("save profile", err)
	}
	if n != 1 {
		return fmt.Errorf("user %s: concurrent write: %w", p.UserID, session.ErrConflict)
	}
	return nil
}

// upsertCounts writes every key of values; keys absent from values are kept
func (s *ProfileStore) upsertCounts(ctx context.Context, tx *sqlx.Tx, table, column, userID string, values map[string]int) error {
	if len(values) == 0 {
		return nil
	}

	cats := make([]string, 0, len(values))
	for c := range values {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	insert := s.sb.Insert(table).Columns("user_id", "category", column)
	for _, c := range cats {
		insert = insert.Values(userID, c, values[c])
	}
	stmt, args, err := insert.
		Suffix(fmt.Sprintf("ON CONFLICT (user_id, category) DO UPDATE SET %s = excluded.%s", column, column)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, stmt, args...)
	return err
}

// List returns every profile ordered by user id
func (s *ProfileStore) List(ctx context.Context) ([]*models.UserProfile, error) {
	return s.list(ctx, s.sb.Select(profileColumns...).From("profiles").OrderBy("user_id"))
}

// Stalled returns learners who left a lesson unfinished before the given time
func (s *ProfileStore) Stalled(ctx context.Context, before time.Time) ([]*models.UserProfile, error) {
	return s.list(ctx, s.sb.Select(profileColumns...).From("profiles").
		Where(sq.Eq{"session_state": []string{models.StateInLesson.String(), models.StateAwaitingCorrection.String()}}).
		Where(sq.Lt{"updated_at": before.UTC()}).
		OrderBy("user_id"))
}

func (s *ProfileStore) list(ctx context.Context, sel sq.SelectBuilder) ([]*models.UserProfile, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []profileRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, unavailable("list profiles", err)
	}

	scores, err := s.allCounts(ctx, "category_scores", "score")
	if err != nil {
		return nil, unavailable("list scores", err)
	}
	errs, err := s.allCounts(ctx, "error_categories", "occurrences")
	if err != nil {
		return nil, unavailable("list error categories", err)
	}

	out := make([]*models.UserProfile, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		if m, ok := scores[p.UserID]; ok {
			p.Scores = m
		}
		if m, ok := errs[p.UserID]; ok {
			p.ErrorCategories = m
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *ProfileStore) allCounts(ctx context.Context, table, column string) (map[string]map[string]int, error) {
	query, args, err := s.sb.Select("user_id", "category", column+" AS value").From(table).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]int)
	for _, r := range rows {
		if out[r.UserID] == nil {
			out[r.UserID] = make(map[string]int)
		}
		out[r.UserID][r.Category] = r.Value
	}
	return out, nil
}

// CountByLevel returns how many learners are at each level
func (s *ProfileStore) CountByLevel(ctx context.Context) (map[models.Level]int, error) {
	query, args, err := s.sb.Select("level", "COUNT(*) AS value").From("profiles").GroupBy("level").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Level string `db:"level"`
		Value int    `db:"value"`
	}
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, unavailable("count by level", err)
	}

	out := make(map[models.Level]int, len(rows))
	for _, r := range rows {
		level, err := models.ParseLevel(r.Level)
		if err != nil {
			return nil, err
		}
		out[level] += r.Value
	}
	return out, nil
}

func (r profileRow) toModel() (*models.UserProfile, error) {
	level, err := models.ParseLevel(r.Level)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", r.UserID, err)
	}
	state, err := models.ParseSessionState(r.SessionState)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", r.UserID, err)
	}

	p := models.NewUserProfile(r.UserID)
	p.Level = level
	p.State = state
	p.LessonID = r.LessonID
	p.ExerciseIndex = r.ExerciseIndex
	p.LastLessonID = r.LastLessonID
	p.LessonsCompleted = r.LessonsCompleted
	p.Version = r.Version
	p.CreatedAt = r.CreatedAt
	p.UpdatedAt = r.UpdatedAt
	return p, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, session.ErrStorageUnavailable, err)
}
