package narrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func TestNarrateUsesServiceResponse(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion("  The fog thickens over the lake.  ")))
	})

	svc := New("test-key", "test-model").WithBaseURL(srv.URL)
	got := svc.Narrate(context.Background(), ContextNightIntro, Data{DayNumber: 2, Theme: "A fishing village"})
	if got != "The fog thickens over the lake." {
		t.Fatalf("unexpected narration %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Fatalf("unexpected model %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("unexpected message shape %#v", gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "A fishing village") {
		t.Fatalf("theme missing from prompt %q", gotReq.Messages[1].Content)
	}
}

func TestNarrateFallsBackOnServerError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	svc := New("test-key", "test-model").WithBaseURL(srv.URL)
	data := Data{DayNumber: 4}
	got := svc.Narrate(context.Background(), ContextNightIntro, data)
	if got != Fallback(ContextNightIntro, data) {
		t.Fatalf("expected the fallback line, got %q", got)
	}
}

func TestNarrateFallsBackOnEmptyContent(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("   ")))
	})

	svc := New("test-key", "test-model").WithBaseURL(srv.URL)
	got := svc.Narrate(context.Background(), ContextVoteStart, Data{AliveCount: 5})
	if got != Fallback(ContextVoteStart, Data{AliveCount: 5}) {
		t.Fatalf("expected the fallback line, got %q", got)
	}
}

func TestNarrateFallsBackOnMalformedBody(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	svc := New("test-key", "test-model").WithBaseURL(srv.URL)
	if got := svc.Narrate(context.Background(), ContextDayIntro, Data{DayNumber: 1}); got == "" {
		t.Fatal("narration must never be empty")
	}
}

func TestNarrateWithoutServiceUsesFallback(t *testing.T) {
	data := Data{VictimName: "Ada", IsTie: true}
	want := Fallback(ContextVoteResult, data)

	var nilSvc *Service
	if got := nilSvc.Narrate(context.Background(), ContextVoteResult, data); got != want {
		t.Fatalf("nil service: got %q", got)
	}
	if got := New("", "model").Narrate(context.Background(), ContextVoteResult, data); got != want {
		t.Fatalf("blank key: got %q", got)
	}
}

func TestPromptTrimsRecentEvents(t *testing.T) {
	data := Data{
		DayNumber:    3,
		RecentEvents: []string{"one", "two", "three", "four", "five"},
	}
	prompt := buildPrompt(ContextNightIntro, data)
	if strings.Contains(prompt, "one") || strings.Contains(prompt, "two.") {
		t.Fatalf("old events leaked into the prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "three. four. five") {
		t.Fatalf("recent events missing from the prompt: %q", prompt)
	}
}
