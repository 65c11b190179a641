package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/edaccel/readtutor/internal/i18n"
	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/questionbank"
	"github.com/edaccel/readtutor/internal/store"
)

// Config holds the tunable session thresholds.
type Config struct {
	TeacherQuestionGoal  int
	QuizQuestionCount    int
	QuizTimeLimitSeconds int
}

func (c Config) withDefaults() Config {
	if c.TeacherQuestionGoal <= 0 {
		c.TeacherQuestionGoal = 5
	}
	if c.QuizQuestionCount <= 0 {
		c.QuizQuestionCount = 5
	}
	if c.QuizTimeLimitSeconds <= 0 {
		c.QuizTimeLimitSeconds = 300
	}
	return c
}

// Deps are the collaborators an orchestrator needs. Gateway, Bank, and
// Passage are required; a nil Sink disables persistence.
type Deps struct {
	Gateway llm.Gateway
	Bank    *questionbank.Bank
	Passage passage.Passage
	Sink    store.Sink
	Config  Config
}

// Reply is the response to an intro or chat operation.
type Reply struct {
	Response           string                `json:"response"`
	Phase              model.Phase           `json:"phase"`
	Plan               *model.EvaluationPlan `json:"plan,omitempty"`
	Transitioned       bool                  `json:"transitioned"`
	SessionComplete    bool                  `json:"session_complete"`
	ShowQuiz           bool                  `json:"show_quiz,omitempty"`
	QuizData           *model.QuizView       `json:"quiz_data,omitempty"`
	TeacherQuestions   int                   `json:"teacher_questions,omitempty"`
	QuestionsUntilQuiz int                   `json:"questions_until_quiz,omitempty"`
}

// SubmitResult is the response to a quiz submission.
type SubmitResult struct {
	Success    bool        `json:"success"`
	Phase      model.Phase `json:"phase"`
	QuizResult QuizOutcome `json:"quiz_result"`
}

// Orchestrator drives one session through the four phases. All operations
// serialize on an internal mutex, held across reasoning-service calls, so
// concurrent callers cannot interleave mutations of the same session.
type Orchestrator struct {
	mu    sync.Mutex
	deps  Deps
	state *State

	evaluator *evaluatorFlow
	teacher   *teacherFlow
	quiz      *model.Quiz
}

// NewOrchestrator creates a fresh session.
func NewOrchestrator(sessionID string, deps Deps) *Orchestrator {
	deps.Config = deps.Config.withDefaults()
	if deps.Sink == nil {
		deps.Sink = store.NoopSink{}
	}
	o := &Orchestrator{deps: deps, state: NewState(sessionID)}
	slog.Info("session created", "session_id", sessionID)
	return o
}

// GetIntro produces the current phase's opening message and appends it to the
// phase transcript. Each call appends; invoke once per phase entry.
func (o *Orchestrator) GetIntro(ctx context.Context) Reply {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.introLocked(ctx)
}

func (o *Orchestrator) introLocked(ctx context.Context) Reply {
	var intro string
	switch o.state.Phase {
	case model.PhaseEvaluator:
		intro = o.getEvaluator(ctx).intro()
	case model.PhaseTeacher:
		intro = o.getTeacher(ctx).intro(ctx, o.deps.Gateway, o.state)
	case model.PhaseQuiz:
		if o.quiz == nil {
			o.quiz = generateQuiz(ctx, o.deps.Gateway, o.state, o.deps.Bank, o.deps.Passage, o.deps.Config)
		}
		intro = o.quizIntro(ctx)
	case model.PhaseReview:
		intro = i18n.T(ctx, "ReviewIntro")
	}
	o.state.AddTurn(o.state.Phase, model.RoleAssistant, intro)

	return Reply{
		Response: intro,
		Phase:    o.state.Phase,
		Plan:     o.state.Plan,
	}
}

// ProcessMessage routes a learner message to the current phase's handler.
func (o *Orchestrator) ProcessMessage(ctx context.Context, text string) Reply {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state.Phase {
	case model.PhaseEvaluator:
		return o.processEvaluator(ctx, text)
	case model.PhaseTeacher:
		return o.processTeacher(ctx, text)
	case model.PhaseQuiz:
		return o.processQuiz(ctx, text)
	default:
		return o.processReview(ctx, text)
	}
}

func (o *Orchestrator) processEvaluator(ctx context.Context, text string) Reply {
	flow := o.getEvaluator(ctx)
	o.state.AddTurn(model.PhaseEvaluator, model.RoleUser, text)

	next, done := flow.record(text)
	if !done {
		o.state.AddTurn(model.PhaseEvaluator, model.RoleAssistant, next)
		return Reply{Response: next, Phase: model.PhaseEvaluator}
	}

	level := flow.level(ctx, o.deps.Gateway)
	if err := o.state.SetPlan(level, teachingFocus[level]); err != nil {
		slog.Warn("keeping existing plan", "session_id", o.state.SessionID, "error", err)
	}

	closing := i18n.T(ctx, "EvaluatorComplete")
	o.state.AddTurn(model.PhaseEvaluator, model.RoleAssistant, closing)

	if err := o.state.TransitionTo(model.PhaseTeacher); err != nil {
		slog.Error("evaluator completion transition rejected", "error", err)
	}
	slog.Info("session leveled", "session_id", o.state.SessionID, "level", level)

	teacherIntro := o.getTeacher(ctx).intro(ctx, o.deps.Gateway, o.state)
	o.state.AddTurn(model.PhaseTeacher, model.RoleAssistant, teacherIntro)

	return Reply{
		Response:     closing + "\n\n" + teacherIntro,
		Phase:        o.state.Phase,
		Plan:         o.state.Plan,
		Transitioned: true,
	}
}

func (o *Orchestrator) processTeacher(ctx context.Context, text string) Reply {
	flow := o.getTeacher(ctx)
	o.state.AddTurn(model.PhaseTeacher, model.RoleUser, text)

	response := flow.reply(ctx, o.deps.Gateway, o.state)
	o.state.AddTurn(model.PhaseTeacher, model.RoleAssistant, response)

	if o.state.TeacherQuestionsAsked >= o.deps.Config.TeacherQuestionGoal {
		o.quiz = generateQuiz(ctx, o.deps.Gateway, o.state, o.deps.Bank, o.deps.Passage, o.deps.Config)
		if err := o.state.TransitionTo(model.PhaseQuiz); err != nil {
			slog.Error("quiz transition rejected", "error", err)
		}
		slog.Info("session entering quiz",
			"session_id", o.state.SessionID,
			"questions_asked", o.state.TeacherQuestionsAsked,
			"quiz_questions", o.quiz.TotalQuestions)

		view := o.quiz.View()
		return Reply{
			Response:     response + "\n\n" + i18n.T(ctx, "TeacherClosing"),
			Phase:        o.state.Phase,
			Plan:         o.state.Plan,
			Transitioned: true,
			ShowQuiz:     true,
			QuizData:     &view,
		}
	}

	return Reply{
		Response:           response,
		Phase:              model.PhaseTeacher,
		Plan:               o.state.Plan,
		TeacherQuestions:   o.state.TeacherQuestionsAsked,
		QuestionsUntilQuiz: o.deps.Config.TeacherQuestionGoal - o.state.TeacherQuestionsAsked,
	}
}

// processQuiz deflects chat during the quiz; answers arrive via SubmitQuiz.
func (o *Orchestrator) processQuiz(ctx context.Context, text string) Reply {
	o.state.AddTurn(model.PhaseQuiz, model.RoleUser, text)
	response := i18n.T(ctx, "QuizDeflection")
	o.state.AddTurn(model.PhaseQuiz, model.RoleAssistant, response)

	return Reply{
		Response: response,
		Phase:    model.PhaseQuiz,
		Plan:     o.state.Plan,
		ShowQuiz: true,
	}
}

func (o *Orchestrator) processReview(ctx context.Context, text string) Reply {
	o.state.AddTurn(model.PhaseReview, model.RoleUser, text)
	response := i18n.T(ctx, "ReviewClosing")
	o.state.AddTurn(model.PhaseReview, model.RoleAssistant, response)
	o.checkpoint()

	return Reply{
		Response:        response,
		Phase:           model.PhaseReview,
		Plan:            o.state.Plan,
		SessionComplete: true,
	}
}

// SubmitQuiz scores the submitted answers, records the result, and moves the
// session to review. Returns ErrNoActiveQuiz outside the quiz phase.
func (o *Orchestrator) SubmitQuiz(ctx context.Context, answers []model.QuizAnswer) (SubmitResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase != model.PhaseQuiz || o.quiz == nil {
		return SubmitResult{}, ErrNoActiveQuiz
	}

	outcome := scoreQuiz(ctx, o.deps.Gateway, o.deps.Passage, o.quiz, answers)
	o.state.SetQuizResult(outcome.Total, outcome.Score, 0)

	if err := o.state.TransitionTo(model.PhaseReview); err != nil {
		slog.Error("review transition rejected", "error", err)
	}
	slog.Info("quiz scored",
		"session_id", o.state.SessionID,
		"score", outcome.Score,
		"total", outcome.Total)
	o.checkpoint()

	return SubmitResult{
		Success:    true,
		Phase:      o.state.Phase,
		QuizResult: outcome,
	}, nil
}

// SkipTo jumps the session forward to a later phase and returns that phase's
// intro. Skipped phases produce none of their usual artifacts; a missing plan
// is replaced by the default medium plan.
func (o *Orchestrator) SkipTo(ctx context.Context, target model.Phase) (Reply, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.state.TransitionTo(target); err != nil {
		return Reply{}, err
	}
	slog.Info("session skipped", "session_id", o.state.SessionID, "phase", target)
	return o.introLocked(ctx), nil
}

// Phase returns the session's current phase.
func (o *Orchestrator) Phase() model.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Phase
}

// Snapshot exports the session state for status reporting and persistence.
func (o *Orchestrator) Snapshot() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Snapshot()
}

func (o *Orchestrator) getEvaluator(ctx context.Context) *evaluatorFlow {
	if o.evaluator == nil {
		o.evaluator = newEvaluatorFlow(ctx, o.deps.Passage, o.deps.Bank)
	}
	return o.evaluator
}

func (o *Orchestrator) getTeacher(ctx context.Context) *teacherFlow {
	if o.teacher == nil {
		if o.state.Plan == nil {
			// A skipped evaluator leaves no plan; coaching proceeds on the
			// default medium plan.
			if err := o.state.SetPlan(model.LevelMedium, teachingFocus[model.LevelMedium]); err != nil {
				slog.Warn("keeping existing plan", "error", err)
			}
		}
		var alreadyAsked []string
		if o.evaluator != nil {
			alreadyAsked = o.evaluator.askedQuestions()
		}
		o.teacher = newTeacherFlow(o.deps.Passage, o.deps.Bank, alreadyAsked)
	}
	return o.teacher
}

func (o *Orchestrator) quizIntro(ctx context.Context) string {
	if o.quiz == nil || len(o.quiz.Questions) == 0 {
		return i18n.T(ctx, "TeacherClosing")
	}
	return i18n.Td(ctx, "QuizIntro", map[string]any{
		"Count":   o.quiz.TotalQuestions,
		"Minutes": o.quiz.TimeLimitSeconds / 60,
		"First":   o.quiz.Questions[0].Question,
	})
}

// checkpoint snapshots the state synchronously and hands it to the sink in
// the background. Persistence never blocks or fails the triggering call.
func (o *Orchestrator) checkpoint() {
	snap := o.state.Snapshot()
	sink := o.deps.Sink
	go func() {
		if !sink.Save(snap) {
			slog.Debug("session checkpoint not persisted", "session_id", snap["session_id"])
		}
	}()
}
