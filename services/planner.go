package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studypulse/models"
	"studypulse/utils"
)

// Output shapes of the plan-generation collaborator.

type GeneratedTopic struct {
	Name            string  `json:"name"`
	HoursAllocated  float64 `json:"hoursAllocated"`
	Difficulty      string  `json:"difficulty"`
	GoalDescription string  `json:"goalDescription"`
}

type GeneratedDay struct {
	Day          int              `json:"day"`
	Topics       []GeneratedTopic `json:"topics"`
	ReviewTopics []string         `json:"reviewTopics"`
	TotalHours   float64          `json:"totalHours"`
}

type GeneratedPlan struct {
	DailySchedule []GeneratedDay `json:"dailySchedule"`
	StudyTips     []string       `json:"studyTips"`
	ExamStrategy  string         `json:"examStrategy"`
}

type TopicDependency struct {
	Prerequisites  []string `json:"prerequisites"`
	Difficulty     string   `json:"difficulty"`
	EstimatedHours float64  `json:"estimatedHours"`
	Description    string   `json:"description"`
}

// TopicProgress is the per-topic snapshot supplied to adaptive replanning.
type TopicProgress struct {
	Topic      string `json:"topic"`
	Completed  bool   `json:"completed"`
	Confidence int    `json:"confidence"`
}

type AdjustedDay struct {
	Day    int      `json:"day"`
	Topics []string `json:"topics"`
	Hours  float64  `json:"hours"`
}

type AdaptivePlan struct {
	PriorityTopics   []string      `json:"priorityTopics"`
	OptionalTopics   []string      `json:"optionalTopics"`
	AdjustedSchedule []AdjustedDay `json:"adjustedSchedule"`
	Recommendations  []string      `json:"recommendations"`
	ConfidenceBoost  []string      `json:"confidenceBoost"`
}

type LearnedTopic struct {
	Name        string `json:"name"`
	LearnedDate string `json:"learnedDate"` // YYYY-MM-DD
}

type ReviewSession struct {
	Date          string   `json:"date"`
	Topics        []string `json:"topics"`
	ReviewType    string   `json:"reviewType"` // quick | deep
	EstimatedTime int      `json:"estimatedTime"`
}

type ReviewScheduleResult struct {
	ReviewSchedule []ReviewSession `json:"reviewSchedule"`
}

// Planner is the plan-generation collaborator. Implementations return
// already-parsed structured plans; callers treat the output as opaque.
type Planner interface {
	GeneratePlan(ctx context.Context, course *models.Course, examDate time.Time, studentLevel string, hoursPerDay float64) (*GeneratedPlan, error)
	GenerateDependencies(ctx context.Context, courseName string, topics []string) (map[string]TopicDependency, error)
	SuggestAdaptivePlan(ctx context.Context, progress []TopicProgress, daysRemaining int) (*AdaptivePlan, error)
	ReviewSchedule(ctx context.Context, learned []LearnedTopic, examDate time.Time) (*ReviewScheduleResult, error)
}

// PerplexityPlanner talks to the Perplexity chat-completions API.
type PerplexityPlanner struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewPerplexityPlanner(baseURL, apiKey, model string) *PerplexityPlanner {
	return &PerplexityPlanner{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *PerplexityPlanner) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", utils.NewUpstreamError("Failed to get AI response", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", utils.NewUpstreamError("Failed to read AI response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", utils.NewUpstreamError("Failed to get AI response",
			fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", utils.NewUpstreamError("Failed to parse AI response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", utils.NewUpstreamError("Failed to parse AI response", fmt.Errorf("no choices returned"))
	}

	return parsed.Choices[0].Message.Content, nil
}

// stripJSONFences removes markdown code fences the model may wrap JSON in.
func stripJSONFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func (p *PerplexityPlanner) completeJSON(ctx context.Context, system, user string, out interface{}) error {
	content, err := p.complete(ctx, system, user)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripJSONFences(content)), out); err != nil {
		return utils.NewUpstreamError("Failed to parse AI response", err)
	}
	return nil
}

func (p *PerplexityPlanner) GeneratePlan(ctx context.Context, course *models.Course, examDate time.Time, studentLevel string, hoursPerDay float64) (*GeneratedPlan, error) {
	daysUntilExam := utils.DaysUntil(time.Now(), examDate)

	prompt := fmt.Sprintf(`Create a %d-day study plan for the following course:

Course: %s
Syllabus Topics: %s
Student Level: %s
Available Hours per Day: %g
Exam Date: %s

Create a day-by-day plan that starts with fundamentals, includes spaced
review sessions, allocates more time to difficult topics, leaves the last
day for final revision, and covers ALL syllabus topics.

Return JSON: {"dailySchedule":[{"day":1,"topics":[{"name":"...","hoursAllocated":2,"difficulty":"beginner|intermediate|advanced","goalDescription":"..."}],"reviewTopics":["..."],"totalHours":4}],"studyTips":["..."],"examStrategy":"..."}
Return ONLY the JSON object.`,
		daysUntilExam, course.Name, strings.Join(course.SyllabusTopicNames(), ", "),
		studentLevel, hoursPerDay, utils.DayKey(examDate))

	var plan GeneratedPlan
	err := p.completeJSON(ctx,
		"You are an expert study planner for students. Create realistic, achievable study plans. Return ONLY valid JSON.",
		prompt, &plan)
	if err != nil {
		return nil, err
	}
	// A plan with no days means the model returned garbage that still
	// happened to be valid JSON; it must not become an empty schedule.
	if len(plan.DailySchedule) == 0 {
		return nil, utils.NewUpstreamError("Failed to parse AI response", fmt.Errorf("empty daily schedule"))
	}
	return &plan, nil
}

func (p *PerplexityPlanner) GenerateDependencies(ctx context.Context, courseName string, topics []string) (map[string]TopicDependency, error) {
	prompt := fmt.Sprintf(`Analyze the course %q with topics: %s.
Create a JSON object mapping each topic to {"prerequisites":["..."],"difficulty":"beginner|intermediate|advanced","estimatedHours":4,"description":"..."}.
Return ONLY the JSON object.`, courseName, strings.Join(topics, ", "))

	deps := make(map[string]TopicDependency)
	err := p.completeJSON(ctx,
		"You are an educational AI that identifies topic dependencies. Return ONLY valid JSON.",
		prompt, &deps)
	if err != nil {
		// Dependencies are advisory metadata; fall back to a flat graph
		// rather than failing plan creation.
		deps = make(map[string]TopicDependency, len(topics))
		for _, topic := range topics {
			deps[topic] = TopicDependency{
				Prerequisites:  []string{},
				Difficulty:     "intermediate",
				EstimatedHours: 4,
				Description:    topic,
			}
		}
	}
	return deps, nil
}

func (p *PerplexityPlanner) SuggestAdaptivePlan(ctx context.Context, progress []TopicProgress, daysRemaining int) (*AdaptivePlan, error) {
	var completed, pending, lowConfidence []string
	for _, tp := range progress {
		if tp.Completed {
			completed = append(completed, tp.Topic)
		} else {
			pending = append(pending, tp.Topic)
		}
		if tp.Confidence > 0 && tp.Confidence < 3 {
			lowConfidence = append(lowConfidence, tp.Topic)
		}
	}

	prompt := fmt.Sprintf(`The student needs to adjust their study plan.

Days Remaining: %d
Completed Topics: %s
Pending Topics: %s
Low Confidence Topics: %s

Suggest which topics to prioritize, which to make optional, and how to
redistribute remaining time.

Return JSON: {"priorityTopics":["..."],"optionalTopics":["..."],"adjustedSchedule":[{"day":1,"topics":["..."],"hours":4}],"recommendations":["..."],"confidenceBoost":["..."]}
Return ONLY the JSON object.`,
		daysRemaining, orNone(completed), strings.Join(pending, ", "), orNone(lowConfidence))

	var plan AdaptivePlan
	err := p.completeJSON(ctx,
		"You are an adaptive study coach. Analyze student progress and suggest realistic plan adjustments. Return ONLY valid JSON.",
		prompt, &plan)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *PerplexityPlanner) ReviewSchedule(ctx context.Context, learned []LearnedTopic, examDate time.Time) (*ReviewScheduleResult, error) {
	parts := make([]string, 0, len(learned))
	for _, lt := range learned {
		parts = append(parts, fmt.Sprintf("%s (learned on %s)", lt.Name, lt.LearnedDate))
	}

	prompt := fmt.Sprintf(`Create a spaced repetition review schedule for these topics:

Topics Learned: %s
Exam Date: %s

Use intervals of 1, 3 and 7 days for review sessions.

Return JSON: {"reviewSchedule":[{"date":"2025-01-15","topics":["..."],"reviewType":"quick|deep","estimatedTime":30}]}
Return ONLY the JSON object.`, strings.Join(parts, ", "), utils.DayKey(examDate))

	var schedule ReviewScheduleResult
	err := p.completeJSON(ctx,
		"You are an expert in spaced repetition learning. Create optimal review schedules. Return ONLY valid JSON.",
		prompt, &schedule)
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func orNone(topics []string) string {
	if len(topics) == 0 {
		return "None"
	}
	return strings.Join(topics, ", ")
}
