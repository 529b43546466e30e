package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/profile"
	"github.com/spigell/matchmaker/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Narrator asks Gemini to explain a match in a sentence or two.
type Narrator struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var systemPrompt string

const defaultMaxLogLength = 200

func NewNarrator(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Narrator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Narrator{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

type pairPayload struct {
	Score    float64        `json:"score"`
	Employer profilePayload `json:"employer"`
	Employee profilePayload `json:"employee"`
}

type profilePayload struct {
	NameFirst string         `json:"nameFirst"`
	Likert    map[string]int `json:"likert"`
	SemDiff   map[string]int `json:"semDiff"`
}

func toPayload(p *profile.Profile) profilePayload {
	return profilePayload{NameFirst: p.NameFirst, Likert: p.Likert, SemDiff: p.SemDiff}
}

func (n *Narrator) Explain(ctx context.Context, employer, employee *profile.Profile, score float64) (*ai.Rationale, error) {
	if employer == nil || employee == nil {
		return nil, fmt.Errorf("employer and employee are required")
	}

	message, err := json.MarshalIndent(pairPayload{
		Score:    score,
		Employer: toPayload(employer),
		Employee: toPayload(employee),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal pair payload: %w", err)
	}

	n.logger.Debug("gemini generate content request",
		zap.String("employer_id", employer.ID),
		zap.String("employee_id", employee.ID),
		zap.Int("prompt_length", utf8.RuneCount(message)),
		zap.String("prompt_preview", utils.TruncateForLog(string(message), n.maxLogLen)),
	)

	raw, err := n.generator.GenerateContent(ctx, systemPrompt, string(message))
	if err != nil {
		return nil, err
	}

	n.logger.Debug("gemini generate content response",
		zap.String("employer_id", employer.ID),
		zap.String("employee_id", employee.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, n.maxLogLen)),
	)

	rationale, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	rationale.Raw = raw
	return rationale, nil
}

func parseResponse(raw string) (*ai.Rationale, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	summary := coerceString(data["summary"])
	if summary == "" {
		return nil, fmt.Errorf("gemini response has no summary")
	}

	return &ai.Rationale{Summary: summary}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
