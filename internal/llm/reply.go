package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edaccel/readtutor/internal/model"
)

// Reply schemas for each gateway call site. The reasoning service is not
// trusted to produce well-formed output: every decoder substitutes named
// defaults instead of propagating parse errors, so a malformed reply degrades
// the round rather than failing it.

// LevelVerdict is the evaluator's batched leveling reply.
type LevelVerdict struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// DecodeLevel parses a leveling reply and returns the student level. Anything
// outside {low, medium, high} - including unparseable JSON - yields medium.
func DecodeLevel(raw string) model.Level {
	var verdict LevelVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		slog.Warn("malformed leveling reply, defaulting to medium", "error", err)
		return model.LevelMedium
	}
	level := model.Level(strings.ToLower(strings.TrimSpace(verdict.Level)))
	if !level.Valid() {
		slog.Warn("leveling reply outside known levels, defaulting to medium", "level", verdict.Level)
		return model.LevelMedium
	}
	return level
}

// Correctness is the tri-state judgment of a student answer. The service
// reports it as JSON true, false, or the string "partial".
type Correctness string

const (
	CorrectYes     Correctness = "correct"
	CorrectNo      Correctness = "incorrect"
	CorrectPartial Correctness = "partial"
)

// UnmarshalJSON accepts the boolean and string spellings the service uses.
func (c *Correctness) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true", "correct", "yes":
		*c = CorrectYes
	case "partial", "partially":
		*c = CorrectPartial
	default:
		*c = CorrectNo
	}
	return nil
}

// Credit returns the accuracy credit for this judgment: 1 for correct,
// 0.5 for partial, 0 otherwise.
func (c Correctness) Credit() float64 {
	switch c {
	case CorrectYes:
		return 1
	case CorrectPartial:
		return 0.5
	}
	return 0
}

// AnswerEvaluation is the teacher's judgment of the student's last answer.
type AnswerEvaluation struct {
	WasCorrect   Correctness `json:"was_correct"`
	Score        float64     `json:"score"`
	FeedbackType string      `json:"feedback_type"`
}

// TeacherReply is one structured turn from the coaching call site.
type TeacherReply struct {
	Message                string            `json:"message"`
	AskedQuestion          bool              `json:"asked_question"`
	QuestionDifficulty     string            `json:"question_difficulty"`
	Evaluation             *AnswerEvaluation `json:"evaluation"`
	EngagementLevel        string            `json:"engagement_level"`
	ShouldAdjustDifficulty string            `json:"should_adjust_difficulty"`
}

// DecodeTeacherReply parses a coaching reply. Malformed output or an empty
// message falls back to the given safe message with neutral defaults, so a bad
// model round never fails the student's turn.
func DecodeTeacherReply(raw, fallbackMessage string) (TeacherReply, bool) {
	var reply TeacherReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || strings.TrimSpace(reply.Message) == "" {
		slog.Warn("malformed teacher reply, substituting fallback", "raw_len", len(raw))
		return TeacherReply{
			Message:                fallbackMessage,
			EngagementLevel:        "medium",
			ShouldAdjustDifficulty: "stay",
		}, false
	}
	if reply.EngagementLevel == "" {
		reply.EngagementLevel = "medium"
	}
	switch reply.ShouldAdjustDifficulty {
	case "up", "down", "stay":
	default:
		reply.ShouldAdjustDifficulty = "stay"
	}
	return reply, true
}

// GeneratedQuestion is one question in a quiz-generation reply.
type GeneratedQuestion struct {
	Question      string `json:"question"`
	Difficulty    string `json:"difficulty"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Topic         string `json:"topic"`
	Source        string `json:"source"`
}

// GeneratedQuiz is the quiz-generation reply.
type GeneratedQuiz struct {
	Analysis         string              `json:"analysis"`
	TimeLimitSeconds int                 `json:"time_limit_seconds"`
	Questions        []GeneratedQuestion `json:"questions"`
}

// DecodeGeneratedQuiz parses a quiz-generation reply. Generation has a
// deterministic pool-based fallback, so here a malformed reply is reported as
// an error for the caller to recover from.
func DecodeGeneratedQuiz(raw string) (GeneratedQuiz, error) {
	var quiz GeneratedQuiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return GeneratedQuiz{}, fmt.Errorf("parse quiz generation reply: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return GeneratedQuiz{}, fmt.Errorf("quiz generation reply contained no questions")
	}
	return quiz, nil
}

// ReviewedAnswer is one scored answer in a quiz-review reply.
type ReviewedAnswer struct {
	QuestionID int    `json:"question_id"`
	IsCorrect  bool   `json:"is_correct"`
	Feedback   string `json:"feedback"`
}

// QuizReview is the batched quiz-scoring reply.
type QuizReview struct {
	Score           float64          `json:"score"`
	Summary         string           `json:"summary"`
	QuestionReviews []ReviewedAnswer `json:"question_reviews"`
}

// DecodeQuizReview parses a quiz-review reply. Scoring has a zero-score
// degraded fallback, so a malformed reply is surfaced as an error.
func DecodeQuizReview(raw string) (QuizReview, error) {
	var review QuizReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return QuizReview{}, fmt.Errorf("parse quiz review reply: %w", err)
	}
	return review, nil
}

// GeneratedBank is the question-bank generation reply: three difficulty pools.
type GeneratedBank struct {
	Easy   []model.PoolQuestion `json:"easy"`
	Medium []model.PoolQuestion `json:"medium"`
	Hard   []model.PoolQuestion `json:"hard"`
}

// DecodeGeneratedBank parses a question-bank generation reply.
func DecodeGeneratedBank(raw string) (GeneratedBank, error) {
	var bank GeneratedBank
	if err := json.Unmarshal([]byte(raw), &bank); err != nil {
		return GeneratedBank{}, fmt.Errorf("parse question bank reply: %w", err)
	}
	if len(bank.Easy) == 0 && len(bank.Medium) == 0 && len(bank.Hard) == 0 {
		return GeneratedBank{}, fmt.Errorf("question bank reply contained no questions")
	}
	return bank, nil
}
