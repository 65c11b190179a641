// Package session implements the tutoring session lifecycle: the phase state
// machine, the per-phase conversation flows, quiz generation and scoring, and
// the registry that owns one orchestrator per session.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/edaccel/readtutor/internal/model"
)

var (
	// ErrBackwardTransition is returned when a transition or skip targets a
	// phase at or before the current one.
	ErrBackwardTransition = errors.New("phase transitions are forward-only")

	// ErrPlanAlreadySet is returned when a second evaluation plan is assigned.
	ErrPlanAlreadySet = errors.New("evaluation plan already set")

	// ErrNoActiveQuiz is returned when answers are submitted outside the quiz
	// phase or before a quiz was generated.
	ErrNoActiveQuiz = errors.New("no active quiz")
)

// State is the aggregate root for one session. It is owned by exactly one
// Orchestrator and mutated only through its phase handlers.
type State struct {
	SessionID string
	CreatedAt time.Time
	Phase     model.Phase

	Plan       *model.EvaluationPlan
	QuizResult *model.QuizResult

	TeacherQuestionsAsked int
	TeacherCorrect        float64
	TeacherAnswered       int
	CurrentDifficulty     model.Difficulty

	conversations map[model.Phase][]model.Turn
}

// NewState creates a fresh session in the evaluator phase.
func NewState(sessionID string) *State {
	return &State{
		SessionID:         sessionID,
		CreatedAt:         time.Now(),
		Phase:             model.PhaseEvaluator,
		CurrentDifficulty: model.DifficultyMedium,
		conversations:     make(map[model.Phase][]model.Turn),
	}
}

// AddTurn appends a turn to the given phase's transcript.
func (s *State) AddTurn(phase model.Phase, role model.Role, content string) {
	s.conversations[phase] = append(s.conversations[phase], model.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Conversation returns a copy of the phase's transcript.
func (s *State) Conversation(phase model.Phase) []model.Turn {
	turns := s.conversations[phase]
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}

// SetPlan records the evaluation plan and derives the starting coaching
// difficulty from the student level. A session gets exactly one plan.
func (s *State) SetPlan(level model.Level, focus string) error {
	if s.Plan != nil {
		return ErrPlanAlreadySet
	}
	s.Plan = &model.EvaluationPlan{StudentLevel: level, TeachingFocus: focus}
	s.CurrentDifficulty = level.StartingDifficulty()
	return nil
}

// TransitionTo moves the session to a strictly later phase.
func (s *State) TransitionTo(target model.Phase) error {
	if !target.Valid() {
		return fmt.Errorf("unknown phase %q", target)
	}
	if !s.Phase.Before(target) {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, s.Phase, target)
	}
	s.Phase = target
	return nil
}

// SetQuizResult records the quiz outcome.
func (s *State) SetQuizResult(total int, correct float64, timeTakenSeconds int) {
	r := model.NewQuizResult(total, correct, timeTakenSeconds)
	s.QuizResult = &r
}

// Snapshot exports the full session state as a JSON-serializable map for the
// persistence sink.
func (s *State) Snapshot() map[string]any {
	snap := map[string]any{
		"session_id":  s.SessionID,
		"created_at":  s.CreatedAt.Format(time.RFC3339),
		"phase":       string(s.Phase),
		"plan":        nil,
		"quiz_result": nil,
		"stats": map[string]any{
			"teacher_questions_asked": s.TeacherQuestionsAsked,
			"teacher_correct":         s.TeacherCorrect,
			"current_difficulty":      string(s.CurrentDifficulty),
		},
	}
	if s.Plan != nil {
		snap["plan"] = map[string]any{
			"student_level":  string(s.Plan.StudentLevel),
			"teaching_focus": s.Plan.TeachingFocus,
		}
	}
	if s.QuizResult != nil {
		snap["quiz_result"] = map[string]any{
			"total_questions":    s.QuizResult.TotalQuestions,
			"correct_answers":    s.QuizResult.CorrectAnswers,
			"score_percentage":   s.QuizResult.ScorePercentage,
			"time_taken_seconds": s.QuizResult.TimeTakenSeconds,
		}
	}
	for _, phase := range model.PhaseOrder {
		turns := make([]map[string]any, 0, len(s.conversations[phase]))
		for _, t := range s.conversations[phase] {
			turns = append(turns, map[string]any{
				"role":      string(t.Role),
				"content":   t.Content,
				"timestamp": t.Timestamp.Format(time.RFC3339),
			})
		}
		snap[string(phase)+"_conversation"] = turns
	}
	return snap
}
