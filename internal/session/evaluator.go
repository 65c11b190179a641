package session

import (
	"context"
	"log/slog"

	"github.com/edaccel/readtutor/internal/i18n"
	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/llm/prompts"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/questionbank"
)

// teachingFocus maps each student level to its fixed coaching focus. The
// reasoning service only picks the level; the focus text is deterministic.
var teachingFocus = map[model.Level]string{
	model.LevelLow:    "Improve interest and engagement with the text. Use simpler questions and encourage longer responses.",
	model.LevelMedium: "Strengthen fundamentals and encourage more detailed responses. Build confidence with medium-difficulty questions.",
	model.LevelHigh:   "Polish comprehension with more challenging questions. Explore deeper analysis and critical thinking.",
}

// levelingLabels describe what each of the six assessment questions probes,
// in asking order.
var levelingLabels = []string{
	"Main Idea",
	"Interest/Engagement",
	"Fiction vs Non-fiction",
	"Easy Question",
	"Medium Question",
	"Hard Question",
}

// evaluatorFlow runs the deterministic six-question assessment: three fixed
// questions followed by one question from each difficulty pool.
type evaluatorFlow struct {
	passage   passage.Passage
	questions []string
	answers   []string
}

func newEvaluatorFlow(ctx context.Context, p passage.Passage, bank *questionbank.Bank) *evaluatorFlow {
	questions := []string{
		i18n.T(ctx, "EvaluatorQuestionMain"),
		i18n.T(ctx, "EvaluatorQuestionInterest"),
		i18n.T(ctx, "EvaluatorQuestionGenre"),
	}
	for _, d := range model.Difficulties {
		q, ok := bank.First(d)
		if !ok {
			q.Question = i18n.T(ctx, "EvaluatorQuestionFallback")
		}
		questions = append(questions, q.Question)
	}
	return &evaluatorFlow{passage: p, questions: questions}
}

// intro returns the first assessment question.
func (f *evaluatorFlow) intro() string {
	return f.questions[0]
}

// record stores an answer and returns the next question, or done=true once
// all six answers are collected.
func (f *evaluatorFlow) record(answer string) (next string, done bool) {
	if len(f.answers) >= len(f.questions) {
		return "", true
	}
	f.answers = append(f.answers, answer)
	if len(f.answers) >= len(f.questions) {
		return "", true
	}
	return f.questions[len(f.answers)], false
}

// askedQuestions returns the assessment questions, used as the coaching
// phase's repetition blacklist.
func (f *evaluatorFlow) askedQuestions() []string {
	out := make([]string, len(f.questions))
	copy(out, f.questions)
	return out
}

// level submits all six question/answer pairs in one batch and returns the
// student level. A gateway failure or malformed verdict yields medium.
func (f *evaluatorFlow) level(ctx context.Context, gw llm.Gateway) model.Level {
	pairs := make([]prompts.LabeledAnswer, 0, len(f.answers))
	for i, a := range f.answers {
		label := ""
		if i < len(levelingLabels) {
			label = levelingLabels[i]
		}
		pairs = append(pairs, prompts.LabeledAnswer{
			Label:    label,
			Question: f.questions[i],
			Answer:   a,
		})
	}

	raw, err := gw.Complete(ctx, prompts.LevelingSystem, []llm.Message{
		{Role: "user", Content: prompts.LevelingPrompt(f.passage.Content, pairs)},
	})
	if err != nil {
		slog.Warn("leveling call failed, defaulting to medium", "error", err)
		return model.LevelMedium
	}
	return llm.DecodeLevel(raw)
}
