package model

import (
	"fmt"
	"time"
)

// Phase represents a stage of the learning session lifecycle.
type Phase string

const (
	PhaseEvaluator Phase = "evaluator"
	PhaseTeacher   Phase = "teacher"
	PhaseQuiz      Phase = "quiz"
	PhaseReview    Phase = "review"
)

// PhaseOrder lists all phases in lifecycle order.
var PhaseOrder = []Phase{PhaseEvaluator, PhaseTeacher, PhaseQuiz, PhaseReview}

var phaseRank = map[Phase]int{
	PhaseEvaluator: 0,
	PhaseTeacher:   1,
	PhaseQuiz:      2,
	PhaseReview:    3,
}

// Rank returns the phase's position in the lifecycle order, or -1 for an
// unknown phase.
func (p Phase) Rank() int {
	r, ok := phaseRank[p]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether p is one of the four session phases.
func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// Before reports whether p comes strictly earlier than other in the lifecycle.
func (p Phase) Before(other Phase) bool {
	return p.Rank() < other.Rank()
}

// ParsePhase converts a string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Role represents who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a phase transcript. Immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Level represents the student level assigned by the evaluator phase.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Valid reports whether l is a known student level.
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// Difficulty represents question difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists all difficulties from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// StartingDifficulty maps a student level to the opening coaching difficulty.
// Unknown levels fall back to medium.
func (l Level) StartingDifficulty() Difficulty {
	switch l {
	case LevelLow:
		return DifficultyEasy
	case LevelHigh:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Step moves the difficulty one notch in the given direction ("up", "down" or
// "stay"), clamped at easy and hard.
func (d Difficulty) Step(direction string) Difficulty {
	switch direction {
	case "up":
		switch d {
		case DifficultyEasy:
			return DifficultyMedium
		case DifficultyMedium:
			return DifficultyHard
		}
	case "down":
		switch d {
		case DifficultyHard:
			return DifficultyMedium
		case DifficultyMedium:
			return DifficultyEasy
		}
	}
	return d
}

// EvaluationPlan is the outcome of the evaluator phase. Created once per
// session, immutable afterward.
type EvaluationPlan struct {
	StudentLevel  Level  `json:"student_level"`
	TeachingFocus string `json:"teaching_focus"`
}

// QuizResult records the outcome of a completed quiz. CorrectAnswers may be
// fractional when partial credit is awarded.
type QuizResult struct {
	TotalQuestions   int     `json:"total_questions"`
	CorrectAnswers   float64 `json:"correct_answers"`
	ScorePercentage  float64 `json:"score_percentage"`
	TimeTakenSeconds int     `json:"time_taken_seconds"`
}

// NewQuizResult builds a QuizResult with the percentage derived from the
// counts. A zero total yields a zero percentage.
func NewQuizResult(total int, correct float64, timeTakenSeconds int) QuizResult {
	pct := 0.0
	if total > 0 {
		pct = correct / float64(total) * 100
	}
	return QuizResult{
		TotalQuestions:   total,
		CorrectAnswers:   correct,
		ScorePercentage:  pct,
		TimeTakenSeconds: timeTakenSeconds,
	}
}

// QuestionSource marks where a quiz question came from.
type QuestionSource string

const (
	SourcePool      QuestionSource = "pool"
	SourceGenerated QuestionSource = "generated"
)

// QuizQuestion is a single quiz question including its answer key. The answer
// and explanation are never sent to the learner before submission.
type QuizQuestion struct {
	ID            int            `json:"id"`
	Question      string         `json:"question"`
	Difficulty    Difficulty     `json:"difficulty"`
	CorrectAnswer string         `json:"correct_answer"`
	Explanation   string         `json:"explanation"`
	Topic         string         `json:"topic"`
	Source        QuestionSource `json:"source"`
}

// Quiz is the ephemeral quiz generated on entry into the quiz phase. It lives
// only in orchestrator memory; only the result is persisted.
type Quiz struct {
	SessionID        string         `json:"session_id"`
	StudentLevel     Level          `json:"student_level"`
	TotalQuestions   int            `json:"total_questions"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	Questions        []QuizQuestion `json:"questions"`
}

// QuizQuestionView is the learner-visible projection of a quiz question.
type QuizQuestionView struct {
	ID         int        `json:"id"`
	Question   string     `json:"question"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuizView is the learner-visible projection of a quiz: no correct answers,
// no explanations.
type QuizView struct {
	TotalQuestions   int                `json:"total_questions"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
	Questions        []QuizQuestionView `json:"questions"`
}

// View strips answer keys from the quiz for delivery to the caller.
func (q *Quiz) View() QuizView {
	views := make([]QuizQuestionView, 0, len(q.Questions))
	for _, qq := range q.Questions {
		views = append(views, QuizQuestionView{
			ID:         qq.ID,
			Question:   qq.Question,
			Difficulty: qq.Difficulty,
		})
	}
	return QuizView{
		TotalQuestions:   q.TotalQuestions,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Questions:        views,
	}
}

// QuizAnswer is one submitted answer, matched to a question by ID.
type QuizAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// QuestionReview is the per-question feedback returned after quiz scoring,
// merged with the original question data.
type QuestionReview struct {
	QuestionID    int        `json:"question_id"`
	IsCorrect     bool       `json:"is_correct"`
	Feedback      string     `json:"feedback"`
	Question      string     `json:"question"`
	UserAnswer    string     `json:"user_answer"`
	CorrectAnswer string     `json:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty"`
}

// PoolQuestion is a precomputed comprehension question from the question bank.
type PoolQuestion struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}
