package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/llm"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/storage"
)

const (
	NoCredentialMessage = "Error: OpenAI API key is not set."
	diagnosticPrefix    = "Error generating suggestions: "

	feedbackExamples = 5
	contextRows      = 5
)

var ErrEmptyChallenge = errors.New("please enter a challenge before requesting suggestions")

type FeedbackSource interface {
	RecentRated(ctx context.Context, n int) []storage.Record
}

type Recorder interface {
	Append(ctx context.Context, challenge string, suggestions []string, user string) (storage.Record, error)
}

// Service turns a patient challenge into counseling suggestions.
// A nil client means no API key is configured.
type Service struct {
	client   llm.Client
	feedback FeedbackSource
	recorder Recorder
	timeout  time.Duration
}

func New(client llm.Client, feedback FeedbackSource, recorder Recorder, timeout time.Duration) *Service {
	return &Service{client: client, feedback: feedback, recorder: recorder, timeout: timeout}
}

// IsDiagnostic reports whether s is an error message rather than a suggestion.
func IsDiagnostic(s []string) bool {
	return len(s) == 1 && (s[0] == NoCredentialMessage || strings.HasPrefix(s[0], diagnosticPrefix))
}

// RequestSuggestions never fails: errors come back as a single diagnostic string.
func (s *Service) RequestSuggestions(ctx context.Context, challenge string, rows []dataset.Row) []string {
	if s.client == nil {
		return []string{NoCredentialMessage}
	}

	var examples []storage.Record
	if s.feedback != nil {
		examples = s.feedback.RecentRated(ctx, feedbackExamples)
	}
	prompt, err := buildPrompt(challenge, examples, rows)
	if err != nil {
		return []string{diagnosticPrefix + err.Error()}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		logger.Log.Errorw("suggestion request failed", "error", err, "elapsed", time.Since(start))
		return []string{diagnosticPrefix + err.Error()}
	}

	suggestions, err := parseSuggestions(resp.Content)
	if err != nil {
		logger.Log.Errorw("unusable suggestion response", "error", err, "model", resp.Model)
		return []string{diagnosticPrefix + err.Error()}
	}
	logger.Log.Infow("suggestions generated", "count", len(suggestions), "model", resp.Model,
		"tokens", resp.TotalTokens, "elapsed", time.Since(start))
	return suggestions
}

// Submit requests suggestions and logs the exchange, diagnostics included.
// The suggestions are returned even when logging fails.
func (s *Service) Submit(ctx context.Context, user, challenge string, rows []dataset.Row) ([]string, storage.Record, error) {
	if strings.TrimSpace(challenge) == "" {
		return nil, storage.Record{}, ErrEmptyChallenge
	}
	suggestions := s.RequestSuggestions(ctx, challenge, rows)
	if s.recorder == nil {
		return suggestions, storage.Record{}, nil
	}
	rec, err := s.recorder.Append(ctx, challenge, suggestions, user)
	if err != nil {
		return suggestions, storage.Record{}, fmt.Errorf("save interaction: %w", err)
	}
	return suggestions, rec, nil
}

func buildPrompt(challenge string, examples []storage.Record, rows []dataset.Row) (string, error) {
	var b strings.Builder
	b.WriteString("As an AI assistant for mental health counselors, provide 3-5 helpful suggestions\n")
	b.WriteString("for addressing the following patient challenge:\n\n")
	b.WriteString(challenge)
	b.WriteString("\n\n")

	if len(examples) > 0 {
		b.WriteString("Recent feedback on previous suggestions:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "Challenge: %s\n", ex.Challenge)
			fmt.Fprintf(&b, "Suggestions: %s\n", storage.EncodeSuggestions(ex.Suggestions))
			fmt.Fprintf(&b, "Feedback: %s\n\n", string(ex.Feedback))
		}
	}

	if len(rows) > 0 {
		b.WriteString("Additional context from the dataset:\n")
		if len(rows) > contextRows {
			rows = rows[:contextRows]
		}
		for _, r := range rows {
			line, err := json.Marshal(r)
			if err != nil {
				return "", fmt.Errorf("encode context row: %w", err)
			}
			b.Write(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Based on the recent feedback and additional context (if provided), please improve your suggestions accordingly.\n\n")
	b.WriteString(`Respond with a JSON object of the form {"suggestions": ["...", "..."]} where each string is one suggestion.` + "\n")
	b.WriteString("Ensure that your suggestions are ethical, professional, and aligned with best practices\n")
	b.WriteString("in mental health counseling.\n")
	return b.String(), nil
}

func parseSuggestions(content string) ([]string, error) {
	content = stripCodeFence(content)
	if content == "" {
		return nil, errors.New("the model returned an empty response")
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	raw, ok := payload["suggestions"]
	if !ok {
		return nil, errors.New(`response has no "suggestions" field`)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf(`"suggestions" is not a list of strings: %w`, err)
	}
	if len(out) == 0 {
		return nil, errors.New("the model returned no suggestions")
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
