package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/beanjar/internal/metrics"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/routine"
)

// Config holds the model endpoint settings.
type Config struct {
	BaseURL string // OpenAI-compatible base, e.g. http://localhost:11434/v1
	Model   string
	APIKey  string
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	config  Config
	client  *http.Client
	metrics *metrics.Metrics
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: m,
	}
}

func (c *Client) endpoint() string {
	base := strings.TrimSuffix(c.config.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// statusError carries a non-2xx upstream status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("oracle returned status %d: %s", e.code, e.body)
}

const consultPrompt = `You are Jerry, a fair but playful family judge who prices household tasks in beans.
Reply with only a JSON object: {"points": <positive integer>, "comment": "<one short sentence>", "emoji": "<one emoji>"}.
EARN tasks are chores that help the family, SPEND tasks are rewards bought with beans, TATTLE tasks are reports of bad behaviour.`

const recommendPrompt = `You are Jerry, a family coach who proposes daily routines.
Reply with only a JSON array of exactly 2 objects:
[{"title": "...", "type": "EARN" or "HOURGLASS", "points": <positive integer>, "time_of_day": "MORNING|AFTERNOON|EVENING",
"days_of_week": "Mon,Tue,...", "duration_minutes": <integer, HOURGLASS only>, "emoji": "<one emoji>"}]`

func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	content, err := c.do(ctx, system, user)
	switch {
	case err == nil:
		c.metrics.OracleRequest(op, "ok")
	case errors.Is(err, ErrRateLimited):
		c.metrics.OracleRequest(op, "rate_limited")
	default:
		c.metrics.OracleRequest(op, "error")
	}
	return content, err
}

func (c *Client) do(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("oracle response has no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

func (c *Client) Consult(ctx context.Context, description string, t model.TaskType) (Verdict, error) {
	if err := checkType(t); err != nil {
		return Verdict{}, err
	}
	content, err := c.complete(ctx, "consult", consultPrompt, fmt.Sprintf("Type: %s\nTask: %s", t, description))
	if err != nil {
		return Verdict{}, err
	}

	raw := extractJSON(content)
	if raw == "" {
		return Verdict{}, fmt.Errorf("oracle reply has no JSON object")
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if v.Points < 0 {
		v.Points = -v.Points
	}
	if v.Points == 0 {
		return Verdict{}, fmt.Errorf("oracle verdict has no points")
	}
	return v, nil
}

func (c *Client) RecommendRoutines(ctx context.Context, role model.Role, name string) ([]Suggestion, error) {
	content, err := c.complete(ctx, "recommend", recommendPrompt, fmt.Sprintf("Member: %s\nRole: %s", name, role))
	if err != nil {
		return nil, err
	}

	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("oracle reply has no JSON array")
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}

	valid := suggestions[:0]
	for _, s := range suggestions {
		if s.Title == "" || s.Points <= 0 {
			continue
		}
		if s.Type != model.TaskHourglass {
			s.Type = model.TaskEarn
			s.DurationMinutes = nil
		} else if s.DurationMinutes == nil || *s.DurationMinutes <= 0 {
			continue
		}
		days, err := routine.NormalizeDays(s.DaysOfWeek)
		if err != nil {
			days = "Sun,Mon,Tue,Wed,Thu,Fri,Sat"
		}
		s.DaysOfWeek = days
		valid = append(valid, s)
	}
	if len(valid) < SuggestionCount {
		return nil, fmt.Errorf("oracle returned %d usable suggestions, want %d", len(valid), SuggestionCount)
	}
	return valid[:SuggestionCount], nil
}
