package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestHeuristicConsult(t *testing.T) {
	tests := []struct {
		desc string
		typ  model.TaskType
		want int
	}{
		{"Washed the dishes", model.TaskEarn, 500},
		{"Cleaned my room", model.TaskEarn, 600},
		{"Shoulder massage for dad", model.TaskEarn, 1000},
		{"Ran an errand", model.TaskEarn, 300},
		{"Finished homework", model.TaskEarn, 200},
		{"설거지 했어요", model.TaskEarn, 500},
		{"Walked the dog", model.TaskEarn, 100},
		{"One hour of games", model.TaskSpend, 1000},
		{"YouTube time", model.TaskSpend, 500},
		{"Snack", model.TaskSpend, 300},
		{"New toy", model.TaskSpend, 500},
		{"He took my pencil", model.TaskTattle, 300},
	}

	var h Heuristic
	for _, tt := range tests {
		v, err := h.Consult(context.Background(), tt.desc, tt.typ)
		if err != nil {
			t.Fatalf("Consult(%q) error: %v", tt.desc, err)
		}
		if v.Points != tt.want {
			t.Errorf("Consult(%q, %s) points = %d, want %d", tt.desc, tt.typ, v.Points, tt.want)
		}
		if v.Comment == "" || v.Emoji == "" {
			t.Errorf("Consult(%q) missing comment or emoji: %+v", tt.desc, v)
		}
	}

	if _, err := h.Consult(context.Background(), "x", "BRIBE"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("err = %v, want ErrInvalidType", err)
	}
}

func TestHeuristicRecommend(t *testing.T) {
	var h Heuristic
	for _, role := range []model.Role{model.RoleParent, model.RoleChild} {
		s, err := h.RecommendRoutines(context.Background(), role, "Mina")
		if err != nil {
			t.Fatalf("recommend: %v", err)
		}
		if len(s) != SuggestionCount {
			t.Errorf("%s: got %d suggestions, want %d", role, len(s), SuggestionCount)
		}
		for _, sg := range s {
			if sg.Type == model.TaskHourglass && sg.DurationMinutes == nil {
				t.Errorf("%s: hourglass suggestion %q has no duration", role, sg.Title)
			}
		}
	}
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}

		w.WriteHeader(status)
		if status != http.StatusOK {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/v1", Model: "test-model", APIKey: "secret"}, nil)
}

func TestClientConsult(t *testing.T) {
	reply := "Sure!\n```json\n{\"points\": 450, \"comment\": \"Nice work\", \"emoji\": \"🧽\",}\n```"
	srv := chatServer(t, http.StatusOK, reply)

	v, err := newTestClient(srv.URL).Consult(context.Background(), "scrubbed the tub", model.TaskEarn)
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if v.Points != 450 || v.Comment != "Nice work" || v.Emoji != "🧽" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestClientRateLimited(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "")

	_, err := newTestClient(srv.URL).Consult(context.Background(), "x", model.TaskEarn)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestClientRecommend(t *testing.T) {
	reply := `[
		{"title": "Brush teeth", "type": "EARN", "points": 50, "time_of_day": "MORNING", "days_of_week": "mon,tue", "emoji": "🪥"},
		{"title": "Piano", "type": "HOURGLASS", "points": 200, "time_of_day": "EVENING", "days_of_week": "Sat", "duration_minutes": 25, "emoji": "🎹"},
		{"title": "Extra", "type": "EARN", "points": 10, "days_of_week": "Sun"}
	]`
	srv := chatServer(t, http.StatusOK, reply)

	s, err := newTestClient(srv.URL).RecommendRoutines(context.Background(), model.RoleChild, "Mina")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(s) != SuggestionCount {
		t.Fatalf("len = %d, want %d", len(s), SuggestionCount)
	}
	if s[0].DaysOfWeek != "Mon,Tue" {
		t.Errorf("days = %q, want %q", s[0].DaysOfWeek, "Mon,Tue")
	}
	if s[1].DurationMinutes == nil || *s[1].DurationMinutes != 25 {
		t.Errorf("duration = %v, want 25", s[1].DurationMinutes)
	}
}

func TestFallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	down := chatServer(t, http.StatusInternalServerError, "")
	f := &Fallback{Primary: newTestClient(down.URL), Secondary: Heuristic{}, Logger: logger}
	v, err := f.Consult(context.Background(), "dishes", model.TaskEarn)
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if v.Points != 500 {
		t.Errorf("points = %d, want heuristic 500", v.Points)
	}

	limited := chatServer(t, http.StatusTooManyRequests, "")
	f = &Fallback{Primary: newTestClient(limited.URL), Secondary: Heuristic{}, Logger: logger}
	if _, err := f.Consult(context.Background(), "dishes", model.TaskEarn); !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited passed through", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{`Here you go: {"a": 1,} enjoy`, `{"a": 1}`},
		{"no json here", ""},
	}
	for _, tt := range tests {
		if got := strings.TrimSpace(extractJSON(tt.in)); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
