package session

import (
	"errors"
	"testing"

	"github.com/edaccel/readtutor/internal/model"
)

func TestNewStateDefaults(t *testing.T) {
	st := NewState("s1")
	if st.Phase != model.PhaseEvaluator {
		t.Errorf("initial phase = %s, want evaluator", st.Phase)
	}
	if st.CurrentDifficulty != model.DifficultyMedium {
		t.Errorf("initial difficulty = %s, want medium", st.CurrentDifficulty)
	}
	if st.Plan != nil || st.QuizResult != nil {
		t.Error("fresh state should have no plan or quiz result")
	}
	if len(st.Conversation(model.PhaseEvaluator)) != 0 {
		t.Error("fresh state should have empty transcripts")
	}
}

func TestAddTurnKeepsPhasesSeparate(t *testing.T) {
	st := NewState("s1")
	st.AddTurn(model.PhaseEvaluator, model.RoleAssistant, "q1")
	st.AddTurn(model.PhaseEvaluator, model.RoleUser, "a1")
	st.AddTurn(model.PhaseTeacher, model.RoleAssistant, "hello")

	ev := st.Conversation(model.PhaseEvaluator)
	if len(ev) != 2 {
		t.Fatalf("evaluator transcript has %d turns, want 2", len(ev))
	}
	if ev[0].Role != model.RoleAssistant || ev[1].Content != "a1" {
		t.Errorf("unexpected evaluator transcript: %+v", ev)
	}
	if len(st.Conversation(model.PhaseTeacher)) != 1 {
		t.Error("teacher transcript should have 1 turn")
	}
	if ev[0].Timestamp.IsZero() {
		t.Error("turns should be timestamped")
	}

	// Conversation returns a copy.
	ev[0].Content = "mutated"
	if st.Conversation(model.PhaseEvaluator)[0].Content != "q1" {
		t.Error("Conversation should return a copy")
	}
}

func TestSetPlanDifficultyMapping(t *testing.T) {
	tests := []struct {
		level model.Level
		want  model.Difficulty
	}{
		{model.LevelLow, model.DifficultyEasy},
		{model.LevelMedium, model.DifficultyMedium},
		{model.LevelHigh, model.DifficultyHard},
	}
	for _, tt := range tests {
		st := NewState("s1")
		if err := st.SetPlan(tt.level, "focus"); err != nil {
			t.Fatalf("SetPlan(%s): %v", tt.level, err)
		}
		if st.CurrentDifficulty != tt.want {
			t.Errorf("difficulty after plan %s = %s, want %s", tt.level, st.CurrentDifficulty, tt.want)
		}
		if st.Plan.StudentLevel != tt.level || st.Plan.TeachingFocus != "focus" {
			t.Errorf("plan = %+v", st.Plan)
		}
	}
}

func TestSetPlanOnlyOnce(t *testing.T) {
	st := NewState("s1")
	if err := st.SetPlan(model.LevelHigh, "advanced"); err != nil {
		t.Fatalf("first SetPlan: %v", err)
	}
	err := st.SetPlan(model.LevelLow, "basics")
	if !errors.Is(err, ErrPlanAlreadySet) {
		t.Fatalf("second SetPlan err = %v, want ErrPlanAlreadySet", err)
	}
	if st.Plan.StudentLevel != model.LevelHigh {
		t.Error("second SetPlan must not overwrite the plan")
	}
}

func TestTransitionForwardOnly(t *testing.T) {
	st := NewState("s1")
	if err := st.TransitionTo(model.PhaseTeacher); err != nil {
		t.Fatalf("evaluator -> teacher: %v", err)
	}
	if err := st.TransitionTo(model.PhaseReview); err != nil {
		t.Fatalf("teacher -> review (skip): %v", err)
	}

	for _, target := range []model.Phase{model.PhaseEvaluator, model.PhaseQuiz, model.PhaseReview} {
		err := st.TransitionTo(target)
		if !errors.Is(err, ErrBackwardTransition) {
			t.Errorf("review -> %s err = %v, want ErrBackwardTransition", target, err)
		}
	}
	if st.Phase != model.PhaseReview {
		t.Errorf("phase after rejected transitions = %s, want review", st.Phase)
	}

	if err := NewState("s2").TransitionTo(model.Phase("grading")); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestSetQuizResult(t *testing.T) {
	st := NewState("s1")
	st.SetQuizResult(5, 3, 90)
	if st.QuizResult.ScorePercentage != 60.0 {
		t.Errorf("ScorePercentage = %v, want 60.0", st.QuizResult.ScorePercentage)
	}

	st2 := NewState("s2")
	st2.SetQuizResult(0, 0, 0)
	if st2.QuizResult.ScorePercentage != 0 {
		t.Errorf("zero-total ScorePercentage = %v, want 0", st2.QuizResult.ScorePercentage)
	}
}

func TestSnapshot(t *testing.T) {
	st := NewState("snap-1")
	st.AddTurn(model.PhaseEvaluator, model.RoleAssistant, "q1")
	st.AddTurn(model.PhaseEvaluator, model.RoleUser, "a1")
	if err := st.SetPlan(model.LevelMedium, "vocabulary"); err != nil {
		t.Fatal(err)
	}
	st.TeacherQuestionsAsked = 3
	st.TeacherCorrect = 2.5
	st.SetQuizResult(5, 4, 0)

	snap := st.Snapshot()

	if snap["session_id"] != "snap-1" || snap["phase"] != "evaluator" {
		t.Errorf("snapshot header = %v / %v", snap["session_id"], snap["phase"])
	}

	plan, ok := snap["plan"].(map[string]any)
	if !ok || plan["student_level"] != "medium" || plan["teaching_focus"] != "vocabulary" {
		t.Errorf("snapshot plan = %v", snap["plan"])
	}

	result, ok := snap["quiz_result"].(map[string]any)
	if !ok || result["score_percentage"] != 80.0 {
		t.Errorf("snapshot quiz_result = %v", snap["quiz_result"])
	}

	turns, ok := snap["evaluator_conversation"].([]map[string]any)
	if !ok || len(turns) != 2 || turns[1]["content"] != "a1" {
		t.Errorf("snapshot evaluator_conversation = %v", snap["evaluator_conversation"])
	}

	stats, ok := snap["stats"].(map[string]any)
	if !ok || stats["teacher_questions_asked"] != 3 || stats["teacher_correct"] != 2.5 {
		t.Errorf("snapshot stats = %v", snap["stats"])
	}
}
