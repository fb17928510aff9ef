// Package session runs the per-learner tutoring state machine. Each incoming
// message is one exchange: lock the user, load the profile, apply the
// message, save once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/example/tutorbot/internal/correction"
	"github.com/example/tutorbot/internal/progress"
	"github.com/example/tutorbot/pkg/models"
)

// Corrector returns the corrected form of a learner's text
type Corrector interface {
	Correct(ctx context.Context, text string, level models.Level) (*models.CorrectionResult, error)
}

// LessonSource picks lessons and resolves stored lesson ids
type LessonSource interface {
	Next(p *models.UserProfile) (*models.Lesson, error)
	Lesson(id string) (*models.Lesson, bool)
}

// Replies shown to learners
const (
	MsgLessonUnavailable     = "😔 Lesson temporarily unavailable. Please try again later."
	MsgCorrectionUnavailable = "⚠️ Correction unavailable right now, your answer was saved as is."
	MsgReset                 = "🔄 Session reset. Send \"start lesson\" when you are ready."
	MsgIdleHint              = "Send \"start lesson\" to begin a lesson, or \"help\" to see what I can do."
	MsgLessonGone            = "That lesson is no longer available. Send \"start lesson\" to begin a new one."
	MsgCorrectUsage          = "Usage: correct <text>"
)

const helpText = `🤖 English tutor commands:
start lesson - begin (or continue) a lesson
progress - your level and category scores
correct <text> - correct any English text (use /correct during a lesson)
reset - leave the current lesson
help - this message

During a lesson, just type your answer to each exercise.`

type command int

const (
	cmdAnswer command = iota
	cmdStart
	cmdReset
	cmdProgress
	cmdHelp
	cmdCorrect
)

var commandNames = map[command]string{
	cmdAnswer:   "answer",
	cmdStart:    "start_lesson",
	cmdReset:    "reset",
	cmdProgress: "progress",
	cmdHelp:     "help",
	cmdCorrect:  "correct",
}

// parseCommand recognizes commands case-insensitively, with or without a leading slash
func parseCommand(text string) (command, string) {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(strings.TrimPrefix(t, "/"))

	switch lower {
	case "start lesson", "start_lesson", "lesson", "start":
		return cmdStart, ""
	case "reset":
		return cmdReset, ""
	case "progress":
		return cmdProgress, ""
	case "help":
		return cmdHelp, ""
	case "correct":
		return cmdCorrect, ""
	}
	if strings.HasPrefix(lower, "correct ") {
		arg := strings.TrimSpace(strings.TrimPrefix(t, "/"))
		return cmdCorrect, strings.TrimSpace(arg[len("correct "):])
	}
	return cmdAnswer, t
}

// Orchestrator handles learner messages
type Orchestrator struct {
	store     ProfileStore
	lessons   LessonSource
	corrector Corrector
	locker    Locker
	log       *slog.Logger
}

// NewOrchestrator wires the session core. A nil locker means an in-process KeyedLocker.
func NewOrchestrator(store ProfileStore, lessons LessonSource, corrector Corrector, locker Locker, log *slog.Logger) *Orchestrator {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		lessons:   lessons,
		corrector: corrector,
		locker:    locker,
		log:       log,
	}
}

// exchange carries what must survive a conflict retry
type exchange struct {
	cmd command
	arg string
	// text is the whole trimmed message, slash reports a leading "/"
	text  string
	slash bool
	log   *slog.Logger

	done     bool
	doneText string
	res      *models.CorrectionResult
	err      error
}

// correct calls the corrector at most once per exchange and text
func (ex *exchange) correct(ctx context.Context, c Corrector, text string, level models.Level) (*models.CorrectionResult, error) {
	if !ex.done || ex.doneText != text {
		ex.res, ex.err = c.Correct(ctx, text, level)
		ex.done = ctx.Err() == nil
		ex.doneText = text
	}
	return ex.res, ex.err
}

// HandleMessage processes one learner message and returns the reply.
// A non-empty reply may accompany an error (NoContentAvailable); an empty
// reply with an error means the exchange was aborted and nothing was saved.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, text string) (string, error) {
	cmd, arg := parseCommand(text)
	trimmed := strings.TrimSpace(text)
	ex := &exchange{
		cmd:   cmd,
		arg:   arg,
		text:  trimmed,
		slash: strings.HasPrefix(trimmed, "/"),
		log: o.log.With(
			slog.String("exchange_id", uuid.NewString()),
			slog.String("user_id", userID),
			slog.String("command", commandNames[cmd]),
		),
	}

	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		ex.log.Warn("exchange aborted", slog.String("code", ErrorCode(err)))
		return "", err
	}
	defer unlock()

	reply, err := o.run(ctx, userID, ex)
	if err != nil {
		ex.log.Warn("exchange failed", slog.String("code", ErrorCode(err)))
	}
	return reply, err
}

func (o *Orchestrator) run(ctx context.Context, userID string, ex *exchange) (string, error) {
	for attempt := 1; ; attempt++ {
		p, err := o.store.Get(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load profile: %w", err)
		}
		from := p.State

		reply, err := o.apply(ctx, ex, p)
		if err != nil {
			return reply, err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err = o.store.Save(ctx, p)
		if err == nil {
			ex.log.Info("exchange handled",
				slog.String("from", from.String()),
				slog.String("to", p.State.String()),
				slog.String("level", p.Level.String()),
				slog.Int("attempt", attempt),
			)
			return reply, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 1 {
			ex.log.Info("profile changed during exchange, reapplying")
			continue
		}
		return "", fmt.Errorf("save profile: %w", err)
	}
}

// apply mutates p according to the exchange and returns the reply
func (o *Orchestrator) apply(ctx context.Context, ex *exchange, p *models.UserProfile) (string, error) {
	switch ex.cmd {
	case cmdHelp:
		return helpText, nil
	case cmdReset:
		resetLesson(p)
		return MsgReset, nil
	case cmdProgress:
		return progressReport(p), nil
	case cmdCorrect:
		// inside a lesson only "/correct" is a command; plain text starting with "correct" is an answer
		if p.State != models.StateIdle && !ex.slash {
			return o.answer(ctx, ex, p, ex.text)
		}
		return o.correctOnly(ctx, ex, p)
	case cmdStart:
		return o.startLesson(ex, p)
	}

	if p.State == models.StateIdle {
		return MsgIdleHint, nil
	}
	return o.answer(ctx, ex, p, ex.arg)
}

func (o *Orchestrator) startLesson(ex *exchange, p *models.UserProfile) (string, error) {
	if p.State != models.StateIdle {
		if lesson, ok := o.lessons.Lesson(p.LessonID); ok && p.ExerciseIndex < len(lesson.Exercises) {
			p.State = models.StateInLesson
			return "Let's continue where you left off.\n\n" + presentExercise(lesson, p.ExerciseIndex), nil
		}
		resetLesson(p)
	}

	lesson, err := o.lessons.Next(p)
	if err != nil {
		if errors.Is(err, ErrNoContentAvailable) {
			ex.log.Error("no lesson content",
				slog.String("level", p.Level.String()),
				slog.String("code", CodeNoContent),
			)
			return MsgLessonUnavailable, err
		}
		return "", err
	}

	p.State = models.StateInLesson
	p.LessonID = lesson.ID
	p.ExerciseIndex = 0

	ex.log.Info("lesson started",
		slog.String("lesson_id", lesson.ID),
		slog.String("category", lesson.Category),
	)
	return fmt.Sprintf("📚 %s (%s, %s)\n\n%s", lesson.Title, lesson.Level.Title(), lesson.Category,
		presentExercise(lesson, 0)), nil
}

func (o *Orchestrator) answer(ctx context.Context, ex *exchange, p *models.UserProfile, text string) (string, error) {
	lesson, ok := o.lessons.Lesson(p.LessonID)
	if !ok || p.ExerciseIndex >= len(lesson.Exercises) {
		ex.log.Warn("stale lesson in profile", slog.String("lesson_id", p.LessonID))
		resetLesson(p)
		return MsgLessonGone, nil
	}
	if text == "" {
		p.State = models.StateInLesson
		return presentExercise(lesson, p.ExerciseIndex), nil
	}

	p.State = models.StateAwaitingCorrection
	res, err := ex.correct(ctx, o.corrector, text, p.Level)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var b strings.Builder
	if err != nil {
		ex.log.Warn("correction degraded",
			slog.String("code", ErrorCode(err)),
			slog.String("reason", correction.Reason(err)),
		)
		fmt.Fprintf(&b, "%s\nYour answer: %s\n", MsgCorrectionUnavailable, text)
	} else {
		before := p.Level
		progress.RecordAnswer(p, lesson.Category, res)
		writeCorrection(&b, res)
		if next := progress.NextLevel(p.Level, p.Scores); next > before {
			p.Level = next
			ex.log.Info("level advanced", slog.String("level", next.String()))
			b.WriteString("\n" + progress.LevelUpMessage(next) + "\n")
		}
	}

	p.ExerciseIndex++
	if p.ExerciseIndex < len(lesson.Exercises) {
		p.State = models.StateInLesson
		b.WriteString("\n" + presentExercise(lesson, p.ExerciseIndex))
		return b.String(), nil
	}

	p.LastLessonID = lesson.ID
	p.LessonsCompleted++
	resetLesson(p)
	ex.log.Info("lesson completed", slog.String("lesson_id", lesson.ID))
	fmt.Fprintf(&b, "\n✅ Lesson complete! %s: %d/100.", lesson.Category, p.Score(lesson.Category))
	if a, ok := progress.AchievementFor(p.LessonsCompleted); ok {
		ex.log.Info("achievement earned", slog.String("title", a.Title))
		b.WriteString("\n" + progress.AchievementMessage(a))
	}
	b.WriteString("\nSend \"start lesson\" for the next one.")
	return b.String(), nil
}

// correctOnly corrects text outside any lesson; profile state is untouched
func (o *Orchestrator) correctOnly(ctx context.Context, ex *exchange, p *models.UserProfile) (string, error) {
	if ex.arg == "" {
		return MsgCorrectUsage, nil
	}
	res, err := ex.correct(ctx, o.corrector, ex.arg, p.Level)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		ex.log.Warn("correction degraded",
			slog.String("code", ErrorCode(err)),
			slog.String("reason", correction.Reason(err)),
		)
		return fmt.Sprintf("%s\nYour text: %s", MsgCorrectionUnavailable, ex.arg), nil
	}

	var b strings.Builder
	writeCorrection(&b, res)
	return strings.TrimRight(b.String(), "\n"), nil
}

func resetLesson(p *models.UserProfile) {
	p.State = models.StateIdle
	p.LessonID = ""
	p.ExerciseIndex = 0
}

func presentExercise(lesson *models.Lesson, i int) string {
	return fmt.Sprintf("📝 Exercise %d/%d:\n%s", i+1, len(lesson.Exercises), lesson.Exercises[i].Prompt)
}

func writeCorrection(b *strings.Builder, res *models.CorrectionResult) {
	if len(res.Errors) == 0 {
		fmt.Fprintf(b, "✅ Perfect! %s\n", res.Corrected)
		return
	}
	fmt.Fprintf(b, "✍️ Correction: %s\n", res.Corrected)
	for _, e := range res.Errors {
		if e.Explanation == "" {
			fmt.Fprintf(b, "• %s\n", e.Category)
			continue
		}
		fmt.Fprintf(b, "• %s: %s\n", e.Category, e.Explanation)
	}
}

func progressReport(p *models.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Level: %s\n", p.Level.Title())
	if p.Level < models.LevelAdvanced {
		fmt.Fprintf(&b, "Progress to %s: %.0f%%\n", (p.Level + 1).Title(), progress.LevelProgress(p.Level, p.Scores))
	}
	fmt.Fprintf(&b, "Lessons completed: %d\n", p.LessonsCompleted)
	if earned := progress.Achievements(p.LessonsCompleted); len(earned) > 0 {
		titles := make([]string, len(earned))
		for i, a := range earned {
			titles[i] = a.Icon + " " + a.Title
		}
		fmt.Fprintf(&b, "Achievements: %s\n", strings.Join(titles, ", "))
	}
	for _, c := range progress.RequiredCategories(p.Level) {
		fmt.Fprintf(&b, "• %s: %d/100\n", c, p.Score(c))
	}
	if p.State != models.StateIdle {
		b.WriteString("A lesson is in progress, send your answer or \"start lesson\" to see the exercise again.")
	}
	return strings.TrimRight(b.String(), "\n")
}
