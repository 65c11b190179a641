package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/edaccel/readtutor/internal/i18n"
	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/llm/prompts"
	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/questionbank"
)

// quizDistribution fixes the easy/medium/hard split per student level.
var quizDistribution = map[model.Level][3]int{
	model.LevelLow:    {3, 2, 0},
	model.LevelMedium: {1, 3, 1},
	model.LevelHigh:   {1, 2, 2},
}

// generateQuiz asks the reasoning service for a personalized quiz built from
// the session context. A failed or malformed reply falls back to a
// deterministic quiz drawn from the question pools, so quiz entry never fails.
func generateQuiz(ctx context.Context, gw llm.Gateway, st *State, bank *questionbank.Bank, p passage.Passage, cfg Config) *model.Quiz {
	plan := model.EvaluationPlan{
		StudentLevel:  model.LevelMedium,
		TeachingFocus: teachingFocus[model.LevelMedium],
	}
	if st.Plan != nil {
		plan = *st.Plan
	}
	dist := quizDistribution[plan.StudentLevel]

	params := prompts.QuizGenParams{
		PassageContent:      p.Content,
		Plan:                plan,
		EvaluatorTranscript: prompts.Transcript(st.Conversation(model.PhaseEvaluator)),
		TeacherTranscript:   prompts.Transcript(st.Conversation(model.PhaseTeacher)),
		Pools:               bank.QuestionTexts(),
		NumQuestions:        cfg.QuizQuestionCount,
		EasyCount:           dist[0],
		MediumCount:         dist[1],
		HardCount:           dist[2],
		TimeLimitSeconds:    cfg.QuizTimeLimitSeconds,
	}

	raw, err := gw.Complete(ctx, prompts.QuizGenSystem, []llm.Message{
		{Role: "user", Content: prompts.QuizGen(params)},
	})
	if err == nil {
		gen, decodeErr := llm.DecodeGeneratedQuiz(raw)
		if decodeErr == nil {
			return buildQuiz(st, plan, gen, cfg)
		}
		err = decodeErr
	}

	slog.Warn("quiz generation failed, building quiz from question pools",
		"session_id", st.SessionID, "error", err)
	return poolQuiz(st, plan, bank, cfg)
}

// buildQuiz converts a generation reply into a quiz, normalizing difficulties
// and capping the question count at the configured size.
func buildQuiz(st *State, plan model.EvaluationPlan, gen llm.GeneratedQuiz, cfg Config) *model.Quiz {
	questions := gen.Questions
	if len(questions) > cfg.QuizQuestionCount {
		questions = questions[:cfg.QuizQuestionCount]
	}

	timeLimit := gen.TimeLimitSeconds
	if timeLimit <= 0 {
		timeLimit = cfg.QuizTimeLimitSeconds
	}

	quiz := &model.Quiz{
		SessionID:        st.SessionID,
		StudentLevel:     plan.StudentLevel,
		TimeLimitSeconds: timeLimit,
	}
	for i, q := range questions {
		difficulty := model.Difficulty(strings.ToLower(q.Difficulty))
		switch difficulty {
		case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		default:
			difficulty = model.DifficultyMedium
		}
		source := model.SourceGenerated
		if q.Source == string(model.SourcePool) {
			source = model.SourcePool
		}
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			ID:            i + 1,
			Question:      q.Question,
			Difficulty:    difficulty,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Topic:         q.Topic,
			Source:        source,
		})
	}
	quiz.TotalQuestions = len(quiz.Questions)
	return quiz
}

// poolQuiz builds a quiz directly from the question pools following the
// level's difficulty distribution.
func poolQuiz(st *State, plan model.EvaluationPlan, bank *questionbank.Bank, cfg Config) *model.Quiz {
	dist := quizDistribution[plan.StudentLevel]

	quiz := &model.Quiz{
		SessionID:        st.SessionID,
		StudentLevel:     plan.StudentLevel,
		TimeLimitSeconds: cfg.QuizTimeLimitSeconds,
	}
	add := func(d model.Difficulty, count int) {
		pool := bank.Pool(d)
		for i := 0; i < count && i < len(pool); i++ {
			quiz.Questions = append(quiz.Questions, model.QuizQuestion{
				ID:            len(quiz.Questions) + 1,
				Question:      pool[i].Question,
				Difficulty:    d,
				CorrectAnswer: pool[i].Answer,
				Explanation:   pool[i].Explanation,
				Topic:         "details",
				Source:        model.SourcePool,
			})
		}
	}
	for i, d := range model.Difficulties {
		add(d, dist[i])
	}
	quiz.TotalQuestions = len(quiz.Questions)
	return quiz
}

// QuizOutcome is the full scoring payload returned to the caller after a quiz
// submission.
type QuizOutcome struct {
	Score           float64                `json:"score"`
	Total           int                    `json:"total"`
	Percentage      float64                `json:"percentage"`
	Summary         string                 `json:"summary"`
	QuestionReviews []model.QuestionReview `json:"question_reviews"`
}

// scoreQuiz matches submitted answers to quiz questions, obtains correctness
// and feedback from the reasoning service in one batched call, and merges the
// feedback back with the question data. Answers referencing unknown question
// ids are dropped. A failed review degrades to a zero score rather than
// failing the submission.
func scoreQuiz(ctx context.Context, gw llm.Gateway, p passage.Passage, quiz *model.Quiz, answers []model.QuizAnswer) QuizOutcome {
	byID := make(map[int]model.QuizQuestion, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.ID] = q
	}

	pairs := make([]prompts.ReviewPair, 0, len(answers))
	userAnswers := make(map[int]string, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			slog.Warn("submitted answer references unknown question, skipping",
				"session_id", quiz.SessionID, "question_id", a.QuestionID)
			continue
		}
		pairs = append(pairs, prompts.ReviewPair{
			QuestionID:    q.ID,
			Question:      q.Question,
			Difficulty:    q.Difficulty,
			CorrectAnswer: q.CorrectAnswer,
			UserAnswer:    a.Answer,
		})
		userAnswers[q.ID] = a.Answer
	}

	total := len(pairs)
	if total == 0 {
		return QuizOutcome{Summary: i18n.T(ctx, "QuizReviewUnavailable")}
	}

	review, err := reviewAnswers(ctx, gw, p, pairs)
	if err != nil {
		slog.Warn("quiz review failed, recording degraded zero-score result",
			"session_id", quiz.SessionID, "error", err)
		review = llm.QuizReview{Summary: i18n.T(ctx, "QuizReviewUnavailable")}
	}

	score := review.Score
	if score < 0 {
		score = 0
	}
	if score > float64(total) {
		score = float64(total)
	}

	reviews := make([]model.QuestionReview, 0, len(review.QuestionReviews))
	for _, r := range review.QuestionReviews {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		reviews = append(reviews, model.QuestionReview{
			QuestionID:    r.QuestionID,
			IsCorrect:     r.IsCorrect,
			Feedback:      r.Feedback,
			Question:      q.Question,
			UserAnswer:    userAnswers[r.QuestionID],
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    q.Difficulty,
		})
	}

	pct := 0.0
	if total > 0 {
		pct = score / float64(total) * 100
	}
	return QuizOutcome{
		Score:           score,
		Total:           total,
		Percentage:      pct,
		Summary:         review.Summary,
		QuestionReviews: reviews,
	}
}

func reviewAnswers(ctx context.Context, gw llm.Gateway, p passage.Passage, pairs []prompts.ReviewPair) (llm.QuizReview, error) {
	raw, err := gw.Complete(ctx, prompts.QuizReviewSystem, []llm.Message{
		{Role: "user", Content: prompts.QuizReview(p.Content, pairs)},
	})
	if err != nil {
		return llm.QuizReview{}, err
	}
	return llm.DecodeQuizReview(raw)
}
