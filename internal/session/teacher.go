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

// teacherFlow runs the adaptive coaching phase. All mutable counters live on
// the State; the flow itself only carries the immutable session context.
type teacherFlow struct {
	passage      passage.Passage
	bank         *questionbank.Bank
	alreadyAsked []string
}

func newTeacherFlow(p passage.Passage, bank *questionbank.Bank, alreadyAsked []string) *teacherFlow {
	return &teacherFlow{passage: p, bank: bank, alreadyAsked: alreadyAsked}
}

func (f *teacherFlow) promptContext(st *State) prompts.TeacherContext {
	plan := model.EvaluationPlan{
		StudentLevel:  model.LevelMedium,
		TeachingFocus: teachingFocus[model.LevelMedium],
	}
	if st.Plan != nil {
		plan = *st.Plan
	}
	return prompts.TeacherContext{
		PassageTitle:   f.passage.Title,
		PassageContent: f.passage.Content,
		Plan:           plan,
		QuestionsAsked: st.TeacherQuestionsAsked,
		Correct:        st.TeacherCorrect,
		Answered:       st.TeacherAnswered,
		Difficulty:     st.CurrentDifficulty,
		AlreadyAsked:   f.alreadyAsked,
		Pools:          f.bank.QuestionTexts(),
	}
}

// intro generates the coaching phase's opening message. An opening question
// counts toward the question goal.
func (f *teacherFlow) intro(ctx context.Context, gw llm.Gateway, st *State) string {
	tc := f.promptContext(st)
	fallback := i18n.T(ctx, "TeacherIntroFallback")

	raw, err := gw.Complete(ctx, prompts.TeacherSystem(tc), []llm.Message{
		{Role: "user", Content: prompts.TeacherIntro(tc)},
	})
	if err != nil {
		slog.Warn("teacher intro call failed, substituting fallback", "error", err)
		raw = ""
	}

	reply, ok := llm.DecodeTeacherReply(raw, fallback)
	if ok && reply.AskedQuestion {
		st.TeacherQuestionsAsked++
	}
	return reply.Message
}

// reply sends the accumulated coaching conversation to the reasoning service
// and applies the bookkeeping the service reports: question count, running
// accuracy, difficulty stepping. The student's turn must already be in the
// transcript.
func (f *teacherFlow) reply(ctx context.Context, gw llm.Gateway, st *State) string {
	tc := f.promptContext(st)
	fallback := i18n.T(ctx, "TeacherTurnFallback")

	turns := st.Conversation(model.PhaseTeacher)
	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	raw, err := gw.Complete(ctx, prompts.TeacherSystem(tc), messages)
	if err != nil {
		slog.Warn("teacher call failed, substituting fallback", "error", err)
		raw = ""
	}

	reply, ok := llm.DecodeTeacherReply(raw, fallback)
	if !ok {
		return reply.Message
	}

	if reply.Evaluation != nil {
		st.TeacherAnswered++
		st.TeacherCorrect += reply.Evaluation.WasCorrect.Credit()
	}
	if reply.AskedQuestion {
		st.TeacherQuestionsAsked++
	}
	st.CurrentDifficulty = st.CurrentDifficulty.Step(reply.ShouldAdjustDifficulty)

	return reply.Message
}
