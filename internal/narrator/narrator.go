// Package narrator generates flavor text for session events through an
// OpenAI-compatible chat endpoint. The engine never blocks on it: every
// call is bounded by a short timeout and falls back to a canned line, so a
// slow or missing narration service is invisible to phase progression.
package narrator

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
)

// Context names the moment being narrated.
type Context string

const (
	ContextNightIntro  Context = "night_intro"
	ContextNightRole   Context = "night_role"
	ContextDayIntro    Context = "day_intro"
	ContextVoteStart   Context = "vote_start"
	ContextVoteResult  Context = "vote_result"
	ContextHunterDeath Context = "hunter_death"
	ContextGameEnd     Context = "game_end"
)

// Data is the structured payload a narration is built from.
type Data struct {
	DayNumber    int
	PlayerCount  int
	AliveCount   int
	VictimName   string
	VictimRole   string
	VictimNames  []string
	IsTie        bool
	Winner       string
	CurrentRole  string
	IsFirstNight bool
	PlayerNames  []string
	Theme        string
	RecentEvents []string
}

// narrateTimeout bounds how long a phase transition may wait for flavor
// text before the fallback line is used instead.
const narrateTimeout = 4 * time.Second

const systemPrompt = `You are the game master narrating a game of Werewolf.

STYLE:
- Simple but eerie language, like a folk tale
- 1-3 sentences, except the opening night (3-4 sentences)

RULES:
- Use EXACTLY the names given, never invent others
- No emojis, quotes or parentheses
- No SSML or XML tags

Reply with the narration only, nothing else.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
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
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Service struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model string) *Service {
	return &Service{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com/v1/chat/completions",
		client:  &http.Client{Timeout: narrateTimeout},
	}
}

// WithBaseURL overrides the completion endpoint, mainly for tests.
func (s *Service) WithBaseURL(url string) *Service {
	s.baseURL = url
	return s
}

// Narrate returns flavor text for the given moment. It never returns an
// empty string and never fails: on any error the deterministic fallback
// line for the context is used.
func (s *Service) Narrate(ctx context.Context, nctx Context, data Data) string {
	if s == nil || strings.TrimSpace(s.apiKey) == "" {
		return Fallback(nctx, data)
	}
	text, err := s.generate(ctx, nctx, data)
	if err != nil || strings.TrimSpace(text) == "" {
		return Fallback(nctx, data)
	}
	return strings.TrimSpace(text)
}

func (s *Service) generate(ctx context.Context, nctx Context, data Data) (string, error) {
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(nctx, data)},
		},
		Temperature: 0.9,
		MaxTokens:   200,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to build narration request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, narrateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build narration request")
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach narration service")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read narration response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("narration request failed (%d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse narration response")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("narration error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("narration service returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildPrompt(nctx Context, data Data) string {
	parts := make([]string, 0, 4)
	if data.Theme != "" {
		parts = append(parts, "SETTING: "+data.Theme)
	}
	if len(data.RecentEvents) > 0 {
		recent := data.RecentEvents
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		parts = append(parts, "EARLIER EVENTS: "+strings.Join(recent, ". "))
	}
	parts = append(parts, fmt.Sprintf("Day/Night: %d, Survivors: %d/%d",
		data.DayNumber, data.AliveCount, data.PlayerCount))
	parts = append(parts, instruction(nctx, data))
	return strings.Join(parts, "\n")
}

func instruction(nctx Context, data Data) string {
	switch nctx {
	case ContextNightIntro:
		if data.IsFirstNight {
			return fmt.Sprintf("GAME OPENING: Introduce this village in 3-4 sentences. The players are: %s. Build a mysterious mood, then invite everyone to close their eyes.",
				strings.Join(data.PlayerNames, ", "))
		}
		return fmt.Sprintf("NIGHT %d: The village falls asleep. 1-2 atmospheric sentences.", data.DayNumber)
	case ContextNightRole:
		switch data.CurrentRole {
		case "werewolf":
			return "The werewolves wake and hunt for prey. 1 sentence."
		case "seer":
			return "The seer opens her eyes, ready to pierce a secret. 1 sentence."
		default:
			return "The witch wakes with her two potions. 1 sentence."
		}
	case ContextDayIntro:
		if len(data.VictimNames) > 0 {
			return fmt.Sprintf("DAY %d: %s found dead this morning. Announce the sunrise and the loss.",
				data.DayNumber, strings.Join(data.VictimNames, " and "))
		}
		return fmt.Sprintf("DAY %d: The sun rises and nobody died tonight. 1-2 sentences.", data.DayNumber)
	case ContextVoteStart:
		return fmt.Sprintf("The village must vote to eliminate a suspect among the %d survivors. 1 sentence.", data.AliveCount)
	case ContextVoteResult:
		if data.VictimName != "" {
			if data.IsTie {
				return fmt.Sprintf("The vote split evenly and fate chose %s, who was a %s. Announce the tie and the elimination.",
					data.VictimName, data.VictimRole)
			}
			return fmt.Sprintf("%s was eliminated by the village vote and was a %s. Announce the elimination and reveal the role.",
				data.VictimName, data.VictimRole)
		}
		return "No votes were cast; nobody is eliminated. 1 sentence."
	case ContextHunterDeath:
		name := data.VictimName
		if name == "" {
			name = "The hunter"
		}
		return fmt.Sprintf("%s was the hunter! One last shot remains. 1-2 dramatic sentences.", name)
	case ContextGameEnd:
		return fmt.Sprintf("The game is over, the %s side has won. Close the tale in 2-3 sentences.", data.Winner)
	}
	return "Narrate the moment in 1 sentence."
}
