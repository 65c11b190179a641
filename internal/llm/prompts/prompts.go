// Package prompts builds the system contexts and user prompts for every
// reasoning-service call site: evaluator leveling, teacher coaching, quiz
// generation, quiz review, and question-bank generation.
package prompts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/edaccel/readtutor/internal/model"
)

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// LevelingSystem is the system context for the batched evaluator call.
const LevelingSystem = "You are evaluating student reading comprehension. Return only valid JSON."

// QuizGenSystem is the system context for quiz generation.
const QuizGenSystem = "You are an expert reading assessment designer. Create fair, clear quiz questions that test comprehension at the appropriate level."

// QuizReviewSystem is the system context for batched quiz scoring.
const QuizReviewSystem = "You are a supportive reading tutor reviewing a student's quiz. Be encouraging but accurate. Celebrate what they got right and gently guide them on incorrect answers."

// BankSystem is the system context for question-bank generation.
const BankSystem = "You are an expert English teacher. Return only valid JSON."

// LabeledAnswer pairs an evaluator question with the student's answer and the
// label describing what the question probes.
type LabeledAnswer struct {
	Label    string
	Question string
	Answer   string
}

// LevelingPrompt builds the holistic leveling prompt from all six evaluator
// question/answer pairs.
func LevelingPrompt(passageContent string, pairs []LabeledAnswer) string {
	var sb strings.Builder
	sb.WriteString("Evaluate this student's reading comprehension responses.\n\n")
	sb.WriteString("PASSAGE:\n" + passageContent + "\n\n")
	sb.WriteString("STUDENT'S ANSWERS:\n")
	for _, p := range pairs {
		sb.WriteString("\n" + p.Label + ":\n")
		sb.WriteString("Q: " + p.Question + "\n")
		sb.WriteString("A: " + SanitizeAnswer(p.Answer) + "\n")
	}
	sb.WriteString(`
Categorize the student into ONE level based on these criteria:

LOW: Poor engagement, very short answers (few words), doesn't understand the text well
MEDIUM: Good attempt, reasonable answers, but lacks detail or depth
HIGH: Detailed responses, good understanding, thoughtful answers

Look at:
1. Answer length and effort
2. Understanding of the passage
3. Engagement and interest shown

Return JSON:
{"level": "low" or "medium" or "high", "reason": "brief explanation of why this level"}
`)
	return sb.String()
}

// TeacherContext carries everything the coaching system prompt needs.
type TeacherContext struct {
	PassageTitle   string
	PassageContent string
	Plan           model.EvaluationPlan
	QuestionsAsked int
	Correct        float64
	Answered       int
	Difficulty     model.Difficulty
	AlreadyAsked   []string
	Pools          map[model.Difficulty][]string
}

// TeacherSystem builds the coaching system prompt with the student profile,
// running stats, repetition blacklist, and question pools.
func TeacherSystem(tc TeacherContext) string {
	var sb strings.Builder
	sb.WriteString("You are an engaging, supportive reading tutor working with a student.\n\n")
	sb.WriteString("PASSAGE:\nTitle: " + tc.PassageTitle + "\n" + tc.PassageContent + "\n\n")
	sb.WriteString("STUDENT PROFILE:\n")
	sb.WriteString("- Level: " + string(tc.Plan.StudentLevel) + "\n")
	sb.WriteString("- Teaching Focus: " + tc.Plan.TeachingFocus + "\n\n")
	sb.WriteString("CURRENT SESSION:\n")
	sb.WriteString(fmt.Sprintf("- Questions asked so far: %d\n", tc.QuestionsAsked))
	sb.WriteString(fmt.Sprintf("- Correct answers: %.1f/%d\n", tc.Correct, tc.Answered))
	sb.WriteString("- Current difficulty: " + string(tc.Difficulty) + "\n\n")
	sb.WriteString(`YOUR TEACHING STYLE:
1. Be warm, encouraging, and patient
2. Give constructive feedback - always find something positive first
3. If they're wrong, guide them to the right answer instead of just telling them
4. Ask follow-up questions to deepen understanding
5. Celebrate small wins to build confidence
6. If they seem stuck, offer hints rather than answers

`)
	sb.WriteString("QUESTIONS ALREADY ASKED (DO NOT repeat these):\n")
	sb.WriteString(jsonList(tc.AlreadyAsked) + "\n\n")
	sb.WriteString("QUESTION POOL (use NEW questions from these or create similar ones - avoid repeating questions above):\n")
	for _, d := range model.Difficulties {
		sb.WriteString(strings.ToUpper(string(d)[:1]) + string(d)[1:] + ": " + jsonList(tc.Pools[d]) + "\n")
	}
	sb.WriteString(`
RESPONSE FORMAT:
Always respond with JSON:
{
    "message": "<your response to the student - conversational, warm>",
    "asked_question": true/false,
    "question_difficulty": "easy/medium/hard/none",
    "evaluation": {"was_correct": true/false/"partial", "score": 0-100, "feedback_type": "praise/encouragement/guidance/correction"},
    "engagement_level": "low/medium/high",
    "should_adjust_difficulty": "up/down/stay"
}
Include "evaluation" only if the student answered a previous question.

IMPORTANT:
- Keep responses concise but warm (2-4 sentences + question)
- Don't ask more than one question at a time
- If the student asks an off-topic question, answer briefly then guide back
`)
	return sb.String()
}

// TeacherIntro builds the prompt for the coaching phase's opening message.
func TeacherIntro(tc TeacherContext) string {
	var sb strings.Builder
	sb.WriteString("Generate an opening message for a teaching session.\n\n")
	sb.WriteString("Student info:\n")
	sb.WriteString("- Level: " + string(tc.Plan.StudentLevel) + "\n")
	sb.WriteString("- Teaching focus: " + tc.Plan.TeachingFocus + "\n\n")
	sb.WriteString("IMPORTANT: These questions were already asked - DO NOT ask any of these again:\n")
	sb.WriteString(jsonList(tc.AlreadyAsked) + "\n\n")
	sb.WriteString("Start by:\n")
	sb.WriteString("1. Welcoming them warmly\n")
	sb.WriteString("2. Briefly mentioning you'll be practicing together\n")
	sb.WriteString(fmt.Sprintf("3. Asking a NEW question (use %s difficulty) - must be different from the ones listed above\n\n", tc.Difficulty))
	sb.WriteString("Keep it brief and friendly. Respond with the usual JSON format.")
	return sb.String()
}

// QuizGenParams carries the session context for quiz generation.
type QuizGenParams struct {
	PassageContent      string
	Plan                model.EvaluationPlan
	EvaluatorTranscript string
	TeacherTranscript   string
	Pools               map[model.Difficulty][]string
	NumQuestions        int
	EasyCount           int
	MediumCount         int
	HardCount           int
	TimeLimitSeconds    int
}

// QuizGen builds the one-shot quiz generation prompt.
func QuizGen(p QuizGenParams) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Based on the learning session context below, generate a %d-question quiz.\n\n", p.NumQuestions))
	sb.WriteString("PASSAGE:\n" + p.PassageContent + "\n\n")
	sb.WriteString("STUDENT LEVEL: " + string(p.Plan.StudentLevel) + "\n")
	sb.WriteString("TEACHING FOCUS: " + p.Plan.TeachingFocus + "\n\n")
	sb.WriteString("EVALUATOR CONVERSATION:\n" + p.EvaluatorTranscript + "\n\n")
	sb.WriteString("TEACHER CONVERSATION:\n" + p.TeacherTranscript + "\n\n")
	sb.WriteString("AVAILABLE QUESTION POOL:\n")
	for _, d := range model.Difficulties {
		sb.WriteString(strings.ToUpper(string(d)[:1]) + string(d)[1:] + ": " + jsonList(p.Pools[d]) + "\n")
	}
	sb.WriteString(fmt.Sprintf(`
QUIZ REQUIREMENTS:
1. Generate exactly %d questions
2. Difficulty distribution: %d easy, %d medium, %d hard
3. Focus on areas where the student showed weakness or uncertainty
4. Include questions that test comprehension at different levels:
   - Recall (easy): Direct facts from the passage
   - Understanding (medium): Connections and reasoning
   - Analysis (hard): Inference and critical thinking
5. You may use questions from the available pool OR generate new ones
6. Each question should have a clear correct answer

Return JSON in this exact format:
{
    "analysis": "Brief analysis of what the student needs to practice",
    "time_limit_seconds": %d,
    "questions": [
        {
            "question": "The question text",
            "difficulty": "easy|medium|hard",
            "correct_answer": "The expected answer",
            "explanation": "Why this is correct (for feedback after quiz)",
            "topic": "main_idea|details|vocabulary|inference|structure|author_purpose",
            "source": "pool|generated"
        }
    ]
}`, p.NumQuestions, p.EasyCount, p.MediumCount, p.HardCount, p.TimeLimitSeconds))
	return sb.String()
}

// ReviewPair pairs a submitted answer with the question's answer key.
type ReviewPair struct {
	QuestionID    int
	Question      string
	Difficulty    model.Difficulty
	CorrectAnswer string
	UserAnswer    string
}

// QuizReview builds the batched scoring prompt for all submitted answers.
func QuizReview(passageContent string, pairs []ReviewPair) string {
	var sb strings.Builder
	sb.WriteString("Review this student's quiz answers about the following passage.\n\n")
	sb.WriteString("PASSAGE:\n" + passageContent + "\n\n")
	sb.WriteString("QUIZ ANSWERS:\n")
	for i, p := range pairs {
		sb.WriteString(fmt.Sprintf("\nQuestion %d (id %d, %s): %s\n", i+1, p.QuestionID, p.Difficulty, p.Question))
		sb.WriteString("Expected Answer: " + p.CorrectAnswer + "\n")
		sb.WriteString("Student's Answer: " + SanitizeAnswer(p.UserAnswer) + "\n---")
	}
	sb.WriteString(fmt.Sprintf(`

For each question:
1. Determine if the student's answer is correct (they don't need exact wording, just the right concept)
2. Provide encouraging, constructive feedback

Return JSON:
{
    "score": <number of correct answers out of %d>,
    "summary": "<2-3 sentence overall summary of performance, encouraging tone>",
    "question_reviews": [
        {"question_id": <id>, "is_correct": true/false, "feedback": "<1-2 sentence feedback for this specific answer>"}
    ]
}`, len(pairs)))
	return sb.String()
}

// BankGen builds the prompt that generates the three question pools from the
// passage.
func BankGen(passageTitle, passageContent string) string {
	var sb strings.Builder
	sb.WriteString("You are creating comprehension questions for the passage below.\n\n")
	sb.WriteString("Title: " + passageTitle + "\n\n")
	sb.WriteString(passageContent + "\n\n")
	sb.WriteString(`Generate 15 comprehension questions divided into 3 difficulty levels:

EASY (5 questions):
- Direct recall from the text
- Simple "what", "who", "where" questions
- Answers are explicitly stated in the passage

MEDIUM (5 questions):
- Require some inference
- "Why" and "how" questions
- Need to connect multiple parts of the text

HARD (5 questions):
- Deep analysis and critical thinking
- Compare, contrast, evaluate
- Infer author's purpose or tone

Return JSON in this exact format:
{
    "easy": [{"question": "...", "answer": "...", "explanation": "..."}],
    "medium": [{"question": "...", "answer": "...", "explanation": "..."}],
    "hard": [{"question": "...", "answer": "...", "explanation": "..."}]
}`)
	return sb.String()
}

// Transcript renders a phase conversation as "ROLE: content" lines.
func Transcript(turns []model.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(strings.ToUpper(string(t.Role)) + ": " + t.Content + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SanitizeAnswer strips instruction-injection markup from a student answer and
// truncates pathological lengths.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
