package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/questionbank"
)

// scriptedGateway routes each call to a canned reply based on the call site's
// system context.
type scriptedGateway struct {
	err            error
	levelReply     string
	teacherReplies []string
	teacherCalls   int
	quizReply      string
	reviewReply    string
}

func (g *scriptedGateway) Complete(_ context.Context, system string, _ []llm.Message) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.Contains(system, "evaluating student reading comprehension"):
		return g.levelReply, nil
	case strings.Contains(system, "reading tutor working with a student"):
		reply := `{"message": "Tell me more!", "asked_question": false}`
		if g.teacherCalls < len(g.teacherReplies) {
			reply = g.teacherReplies[g.teacherCalls]
		}
		g.teacherCalls++
		return reply, nil
	case strings.Contains(system, "assessment designer"):
		return g.quizReply, nil
	case strings.Contains(system, "reviewing a student's quiz"):
		return g.reviewReply, nil
	}
	return "", fmt.Errorf("unexpected call site: %s", system)
}

// recordingSink captures checkpoint snapshots.
type recordingSink struct {
	snapshots chan map[string]any
}

func (r *recordingSink) Save(snapshot map[string]any) bool {
	r.snapshots <- snapshot
	return true
}

func teacherTurn(askedQuestion bool) string {
	return fmt.Sprintf(`{
		"message": "Good thinking! What about the drones?",
		"asked_question": %v,
		"question_difficulty": "easy",
		"evaluation": {"was_correct": true, "score": 90, "feedback_type": "praise"},
		"engagement_level": "medium",
		"should_adjust_difficulty": "stay"
	}`, askedQuestion)
}

func fiveQuestionQuiz() string {
	questions := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		questions = append(questions, fmt.Sprintf(
			`{"question": "Q%d", "difficulty": "easy", "correct_answer": "A%d", "explanation": "E%d", "topic": "details", "source": "generated"}`,
			i, i, i))
	}
	return fmt.Sprintf(`{"analysis": "practice recall", "time_limit_seconds": 300, "questions": [%s]}`,
		strings.Join(questions, ","))
}

func threeOfFiveReview() string {
	return `{
		"score": 3,
		"summary": "Nice work overall!",
		"question_reviews": [
			{"question_id": 1, "is_correct": true, "feedback": "Yes."},
			{"question_id": 2, "is_correct": true, "feedback": "Yes."},
			{"question_id": 3, "is_correct": true, "feedback": "Yes."},
			{"question_id": 4, "is_correct": false, "feedback": "Not quite."},
			{"question_id": 5, "is_correct": false, "feedback": "Not quite."}
		]
	}`
}

func testDeps(gw llm.Gateway) Deps {
	return Deps{
		Gateway: gw,
		Bank:    questionbank.Default(),
		Passage: passage.Default(),
	}
}

func TestFullSessionLifecycle(t *testing.T) {
	gw := &scriptedGateway{
		levelReply: `{"level": "low", "reason": "very short answers"}`,
		teacherReplies: append(
			[]string{`{"message": "Welcome! Who lays the eggs?", "asked_question": false}`},
			teacherTurn(true), teacherTurn(true), teacherTurn(true), teacherTurn(true), teacherTurn(true),
		),
		quizReply:   fiveQuestionQuiz(),
		reviewReply: threeOfFiveReview(),
	}
	sink := &recordingSink{snapshots: make(chan map[string]any, 2)}
	deps := testDeps(gw)
	deps.Sink = sink
	o := NewOrchestrator("e2e", deps)
	ctx := context.Background()

	// Evaluator opens with the first fixed question.
	intro := o.GetIntro(ctx)
	if intro.Phase != model.PhaseEvaluator {
		t.Fatalf("intro phase = %s", intro.Phase)
	}
	if !strings.Contains(intro.Response, "what this passage is about") {
		t.Fatalf("unexpected evaluator intro: %q", intro.Response)
	}

	// Five short answers walk through the remaining questions.
	for i := 0; i < 5; i++ {
		reply := o.ProcessMessage(ctx, "idk")
		if reply.Transitioned {
			t.Fatalf("answer %d should not transition", i+1)
		}
		if reply.Phase != model.PhaseEvaluator {
			t.Fatalf("answer %d phase = %s", i+1, reply.Phase)
		}
	}

	// The sixth answer levels the student and enters coaching.
	reply := o.ProcessMessage(ctx, "idk")
	if !reply.Transitioned {
		t.Fatal("sixth answer should transition to teacher")
	}
	if reply.Phase != model.PhaseTeacher {
		t.Fatalf("phase after leveling = %s", reply.Phase)
	}
	if reply.Plan == nil || reply.Plan.StudentLevel != model.LevelLow {
		t.Fatalf("plan = %+v, want low", reply.Plan)
	}
	if !strings.Contains(reply.Response, "personalized learning plan") ||
		!strings.Contains(reply.Response, "Welcome! Who lays the eggs?") {
		t.Fatalf("transition response should merge closing and intro: %q", reply.Response)
	}

	snap := o.Snapshot()
	if snap["stats"].(map[string]any)["current_difficulty"] != "easy" {
		t.Fatalf("difficulty after low plan = %v", snap["stats"])
	}

	// Five coached questions reach the quiz threshold.
	for i := 0; i < 4; i++ {
		reply = o.ProcessMessage(ctx, "the queen lays eggs")
		if reply.Transitioned {
			t.Fatalf("teacher turn %d should not transition", i+1)
		}
		if reply.TeacherQuestions != i+1 || reply.QuestionsUntilQuiz != 5-(i+1) {
			t.Fatalf("turn %d counters = %d asked, %d until quiz",
				i+1, reply.TeacherQuestions, reply.QuestionsUntilQuiz)
		}
	}
	reply = o.ProcessMessage(ctx, "the queen lays eggs")
	if !reply.Transitioned || reply.Phase != model.PhaseQuiz {
		t.Fatalf("fifth teacher question should enter quiz, got %+v", reply)
	}
	if !reply.ShowQuiz || reply.QuizData == nil {
		t.Fatal("quiz transition should carry the quiz payload")
	}
	if reply.QuizData.TotalQuestions != 5 || reply.QuizData.TimeLimitSeconds != 300 {
		t.Fatalf("quiz payload = %+v", reply.QuizData)
	}

	// Answer keys must never reach the learner.
	payload, err := json.Marshal(reply.QuizData)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), "correct_answer") || strings.Contains(string(payload), "explanation") {
		t.Fatalf("quiz payload leaks answer keys: %s", payload)
	}

	// Chat during the quiz is deflected.
	deflect := o.ProcessMessage(ctx, "what is the answer to question 1?")
	if deflect.Transitioned || !deflect.ShowQuiz {
		t.Fatalf("quiz chat reply = %+v", deflect)
	}

	// Submission scores 3/5 and lands in review.
	answers := make([]model.QuizAnswer, 0, 5)
	for i := 1; i <= 5; i++ {
		answers = append(answers, model.QuizAnswer{QuestionID: i, Answer: "my answer"})
	}
	result, err := o.SubmitQuiz(ctx, answers)
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if !result.Success || result.Phase != model.PhaseReview {
		t.Fatalf("submit result = %+v", result)
	}
	if result.QuizResult.Percentage != 60.0 {
		t.Fatalf("percentage = %v, want 60.0", result.QuizResult.Percentage)
	}
	if len(result.QuizResult.QuestionReviews) != 5 {
		t.Fatalf("expected 5 question reviews, got %d", len(result.QuizResult.QuestionReviews))
	}
	if result.QuizResult.QuestionReviews[0].Question != "Q1" ||
		result.QuizResult.QuestionReviews[0].CorrectAnswer != "A1" {
		t.Fatalf("review not merged with question data: %+v", result.QuizResult.QuestionReviews[0])
	}

	// The checkpoint fires on review entry.
	select {
	case snap := <-sink.snapshots:
		if snap["session_id"] != "e2e" || snap["phase"] != "review" {
			t.Fatalf("checkpoint snapshot = %v / %v", snap["session_id"], snap["phase"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a persistence checkpoint after quiz submission")
	}

	// Review chat closes the session and checkpoints again.
	closing := o.ProcessMessage(ctx, "how did I do?")
	if !closing.SessionComplete {
		t.Fatal("review message should mark the session complete")
	}
	select {
	case <-sink.snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a persistence checkpoint from the review phase")
	}
}

func TestGetIntroAppendsTurn(t *testing.T) {
	o := NewOrchestrator("intro", testDeps(&scriptedGateway{}))
	ctx := context.Background()

	o.GetIntro(ctx)
	o.GetIntro(ctx)

	turns := o.Snapshot()["evaluator_conversation"].([]map[string]any)
	if len(turns) != 2 {
		t.Fatalf("expected 2 appended intro turns, got %d", len(turns))
	}
}

func TestSubmitQuizWithoutActiveQuiz(t *testing.T) {
	o := NewOrchestrator("noquiz", testDeps(&scriptedGateway{}))
	_, err := o.SubmitQuiz(context.Background(), []model.QuizAnswer{{QuestionID: 1, Answer: "x"}})
	if !errors.Is(err, ErrNoActiveQuiz) {
		t.Fatalf("err = %v, want ErrNoActiveQuiz", err)
	}
	if o.Phase() != model.PhaseEvaluator {
		t.Error("failed submission must not change the phase")
	}
}

func TestSubmitQuizSkipsUnknownIDs(t *testing.T) {
	gw := &scriptedGateway{
		quizReply: fiveQuestionQuiz(),
		reviewReply: `{
			"score": 1,
			"summary": "ok",
			"question_reviews": [{"question_id": 1, "is_correct": true, "feedback": "yes"}]
		}`,
	}
	o := NewOrchestrator("unknown-ids", testDeps(gw))
	ctx := context.Background()

	if _, err := o.SkipTo(ctx, model.PhaseQuiz); err != nil {
		t.Fatalf("SkipTo(quiz): %v", err)
	}

	result, err := o.SubmitQuiz(ctx, []model.QuizAnswer{
		{QuestionID: 1, Answer: "a"},
		{QuestionID: 99, Answer: "phantom"},
	})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if result.QuizResult.Total != 1 {
		t.Errorf("total = %d, want 1 (unknown id dropped)", result.QuizResult.Total)
	}
}

func TestSkipBackwardFails(t *testing.T) {
	o := NewOrchestrator("skip", testDeps(&scriptedGateway{
		teacherReplies: []string{`{"message": "Welcome!", "asked_question": false}`},
	}))
	ctx := context.Background()

	if _, err := o.SkipTo(ctx, model.PhaseTeacher); err != nil {
		t.Fatalf("SkipTo(teacher): %v", err)
	}
	_, err := o.SkipTo(ctx, model.PhaseEvaluator)
	if !errors.Is(err, ErrBackwardTransition) {
		t.Fatalf("err = %v, want ErrBackwardTransition", err)
	}
	if o.Phase() != model.PhaseTeacher {
		t.Errorf("phase after rejected skip = %s, want teacher", o.Phase())
	}
}

func TestSkipToQuizUsesPoolFallback(t *testing.T) {
	// The gateway is down for every call site; quiz entry must still work.
	o := NewOrchestrator("fallback", testDeps(&scriptedGateway{err: errors.New("endpoint down")}))

	reply, err := o.SkipTo(context.Background(), model.PhaseQuiz)
	if err != nil {
		t.Fatalf("SkipTo(quiz): %v", err)
	}
	if reply.Phase != model.PhaseQuiz {
		t.Fatalf("phase = %s", reply.Phase)
	}
	// Medium default plan: 1 easy, 3 medium, 1 hard from the pools.
	if !strings.Contains(reply.Response, "I have 5 questions for you") {
		t.Errorf("quiz intro = %q", reply.Response)
	}
}

func TestTeacherGatewayFailureFallsBack(t *testing.T) {
	gw := &scriptedGateway{
		teacherReplies: []string{`{"message": "Welcome!", "asked_question": false}`},
	}
	o := NewOrchestrator("degraded", testDeps(gw))
	ctx := context.Background()

	if _, err := o.SkipTo(ctx, model.PhaseTeacher); err != nil {
		t.Fatal(err)
	}

	// Subsequent calls fail; the turn degrades to the fixed safe message.
	gw.err = errors.New("endpoint down")
	reply := o.ProcessMessage(ctx, "the queen lays eggs")
	if reply.Response != "That's interesting! Can you tell me more?" {
		t.Errorf("fallback response = %q", reply.Response)
	}
	if reply.Transitioned || reply.TeacherQuestions != 0 {
		t.Errorf("degraded turn must not advance counters: %+v", reply)
	}
}

func TestMalformedLevelingDefaultsToMedium(t *testing.T) {
	gw := &scriptedGateway{
		levelReply:     `this is not json`,
		teacherReplies: []string{`{"message": "Welcome!", "asked_question": false}`},
	}
	o := NewOrchestrator("malformed-level", testDeps(gw))
	ctx := context.Background()

	o.GetIntro(ctx)
	var reply Reply
	for i := 0; i < 6; i++ {
		reply = o.ProcessMessage(ctx, "an answer")
	}
	if reply.Plan == nil || reply.Plan.StudentLevel != model.LevelMedium {
		t.Fatalf("plan = %+v, want medium default", reply.Plan)
	}
	snap := o.Snapshot()
	if snap["stats"].(map[string]any)["current_difficulty"] != "medium" {
		t.Errorf("difficulty = %v, want medium", snap["stats"])
	}
}

func TestQuizReviewFailureDegradesToZeroScore(t *testing.T) {
	gw := &scriptedGateway{
		quizReply:   fiveQuestionQuiz(),
		reviewReply: `not json at all`,
	}
	o := NewOrchestrator("review-degraded", testDeps(gw))
	ctx := context.Background()

	if _, err := o.SkipTo(ctx, model.PhaseQuiz); err != nil {
		t.Fatal(err)
	}
	result, err := o.SubmitQuiz(ctx, []model.QuizAnswer{{QuestionID: 1, Answer: "a"}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if result.QuizResult.Score != 0 || result.QuizResult.Percentage != 0 {
		t.Errorf("degraded result = %+v, want zero score", result.QuizResult)
	}
	if result.Phase != model.PhaseReview {
		t.Error("degraded scoring must still transition to review")
	}
}
