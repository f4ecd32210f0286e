// Package oracle suggests point values for task descriptions and proposes
// routines for new members. Suggestions are advisory; nothing here touches
// the ledger.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/beanjar/internal/model"
)

var (
	// ErrRateLimited means the upstream model refused the call for now.
	// Callers should wait before retrying.
	ErrRateLimited = errors.New("oracle rate limited")
	ErrInvalidType = errors.New("type must be EARN, SPEND or TATTLE")
)

// Verdict is the oracle's opinion on a task.
type Verdict struct {
	Points  int    `json:"points"`
	Comment string `json:"comment"`
	Emoji   string `json:"emoji"`
}

// Suggestion is a proposed routine.
type Suggestion struct {
	Title           string         `json:"title"`
	Type            model.TaskType `json:"type"`
	Points          int            `json:"points"`
	TimeOfDay       string         `json:"time_of_day"`
	DaysOfWeek      string         `json:"days_of_week"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	Emoji           string         `json:"emoji"`
}

// SuggestionCount is how many routines RecommendRoutines returns.
const SuggestionCount = 2

type Oracle interface {
	Consult(ctx context.Context, description string, t model.TaskType) (Verdict, error)
	RecommendRoutines(ctx context.Context, role model.Role, name string) ([]Suggestion, error)
}

func checkType(t model.TaskType) error {
	switch t {
	case model.TaskEarn, model.TaskSpend, model.TaskTattle, model.TaskHourglass:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidType, t)
}

// --- Heuristic ---

type rule struct {
	keywords []string
	verdict  Verdict
}

var earnRules = []rule{
	{[]string{"dish", "설거지", "그릇"}, Verdict{500, "Make them sparkle!", "🍽️"}},
	{[]string{"clean", "tidy", "vacuum", "청소", "정리"}, Verdict{600, "A clean room is a happy room!", "🧹"}},
	{[]string{"massage", "안마", "주무르기"}, Verdict{1000, "Kindness to parents pays well!", "💆"}},
	{[]string{"errand", "심부름"}, Verdict{300, "Quick and accurate!", "🏃"}},
	{[]string{"study", "homework", "공부", "숙제"}, Verdict{200, "Knowledge and beans, both growing!", "📚"}},
}

var spendRules = []rule{
	{[]string{"game", "fifa", "게임", "피파"}, Verdict{1000, "Enjoy one hour of games!", "🎮"}},
	{[]string{"video", "youtube", "유튜브", "영상"}, Verdict{500, "Thirty minutes of videos!", "📺"}},
	{[]string{"snack", "candy", "간식", "과자"}, Verdict{300, "Enjoy the treat!", "🍪"}},
}

var (
	earnDefault   = Verdict{100, "Thanks for helping the family!", "👍"}
	spendDefault  = Verdict{500, "Spend wisely!", "💸"}
	tattleDefault = Verdict{300, "Jerry has noted the report.", "🕵️"}
)

// Heuristic answers from a fixed keyword table. It never fails and is used
// when no model endpoint is configured, or when the endpoint is down.
type Heuristic struct{}

func (Heuristic) Consult(_ context.Context, description string, t model.TaskType) (Verdict, error) {
	if err := checkType(t); err != nil {
		return Verdict{}, err
	}
	desc := strings.ToLower(description)

	var rules []rule
	fallback := earnDefault
	switch t {
	case model.TaskSpend:
		rules, fallback = spendRules, spendDefault
	case model.TaskTattle:
		return tattleDefault, nil
	default:
		rules = earnRules
	}

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(desc, kw) {
				return r.verdict, nil
			}
		}
	}
	return fallback, nil
}

func (Heuristic) RecommendRoutines(_ context.Context, role model.Role, name string) ([]Suggestion, error) {
	reading := 20
	if role == model.RoleParent {
		return []Suggestion{
			{Title: "Morning stretch", Type: model.TaskEarn, Points: 100, TimeOfDay: "MORNING", DaysOfWeek: "Mon,Tue,Wed,Thu,Fri", Emoji: "🧘"},
			{Title: "Read before bed", Type: model.TaskHourglass, Points: 200, TimeOfDay: "EVENING", DaysOfWeek: "Sun,Mon,Tue,Wed,Thu,Fri,Sat", DurationMinutes: &reading, Emoji: "📖"},
		}, nil
	}
	homework := 30
	return []Suggestion{
		{Title: "Make the bed", Type: model.TaskEarn, Points: 100, TimeOfDay: "MORNING", DaysOfWeek: "Sun,Mon,Tue,Wed,Thu,Fri,Sat", Emoji: "🛏️"},
		{Title: name + "'s homework time", Type: model.TaskHourglass, Points: 300, TimeOfDay: "AFTERNOON", DaysOfWeek: "Mon,Tue,Wed,Thu,Fri", DurationMinutes: &homework, Emoji: "✏️"},
	}, nil
}

// --- Fallback ---

// Fallback asks Primary first and answers from Secondary when Primary fails
// for any reason other than rate limiting.
type Fallback struct {
	Primary   Oracle
	Secondary Oracle
	Logger    *slog.Logger
}

func (f *Fallback) Consult(ctx context.Context, description string, t model.TaskType) (Verdict, error) {
	v, err := f.Primary.Consult(ctx, description, t)
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidType) {
		return v, err
	}
	f.Logger.Warn("oracle consult failed, using heuristic", "error", err)
	return f.Secondary.Consult(ctx, description, t)
}

func (f *Fallback) RecommendRoutines(ctx context.Context, role model.Role, name string) ([]Suggestion, error) {
	s, err := f.Primary.RecommendRoutines(ctx, role, name)
	if err == nil || errors.Is(err, ErrRateLimited) {
		return s, err
	}
	f.Logger.Warn("oracle recommend failed, using heuristic", "error", err)
	return f.Secondary.RecommendRoutines(ctx, role, name)
}
