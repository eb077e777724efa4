package prompts

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/generator"
	"github.com/promptforge-ai/promptforge/internal/scoring"
)

// Prompt matches the prompts table schema. Embedding is stored when the
// generator's embedding endpoint was reachable at save time.
type Prompt struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"user_id"`
	Input      string       `json:"original_input"`
	Enhanced   string       `json:"professional_prompt"`
	Type       scoring.Type `json:"type"`
	Complexity string       `json:"complexity"`
	Score      float64      `json:"quality_score"`
	WordCount  int          `json:"word_count"`
	CharCount  int          `json:"character_count"`
	ModelUsed  string       `json:"model_used"`
	Fallback   bool         `json:"fallback"`
	Embedding  []float32    `json:"-"`
	CreatedAt  time.Time    `json:"created_at"`
}

type GenerateRequest struct {
	Prompt     string `json:"prompt" validate:"required"`
	Type       string `json:"type"`
	Complexity string `json:"complexity"`
}

type GenerateResponse struct {
	Status             string         `json:"status"`
	ProfessionalPrompt string         `json:"professional_prompt"`
	Type               scoring.Type   `json:"type"`
	Complexity         string         `json:"complexity"`
	QualityMetrics     scoring.Report `json:"quality_metrics"`
	WordCount          int            `json:"word_count"`
	CharacterCount     int            `json:"character_count"`
	PromptID           *uuid.UUID     `json:"prompt_id"`
	Authenticated      bool           `json:"authenticated"`
	Fallback           bool           `json:"fallback,omitempty"`
}

type AnalyzeRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Type   string `json:"type"`
}

type AnalyzeResponse struct {
	Status         string         `json:"status"`
	Analysis       string         `json:"analysis"`
	QualityMetrics scoring.Report `json:"quality_metrics"`
	AnalysisID     *uuid.UUID     `json:"analysis_id"`
	Authenticated  bool           `json:"authenticated"`
}

// Analysis is a stored critique of an existing prompt, kept separate from
// generated prompts so it never shows up in history or per-type stats.
type Analysis struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OriginalPrompt string    `json:"original_prompt"`
	Analysis       string    `json:"analysis"`
	CreatedAt      time.Time `json:"created_at"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit"`
}

// Stats mirrors the /user/stats payload.
type Stats struct {
	TotalPrompts   int64            `json:"total_prompts"`
	PromptsToday   int              `json:"prompts_today"`
	DailyLimit     int              `json:"daily_limit"`
	Plan           string           `json:"plan"`
	PromptsByType  map[string]int64 `json:"prompts_by_type"`
	AccountCreated *time.Time       `json:"account_created"`
}

// TemplatesResponse is the static catalog served to the prompt editor.
type TemplatesResponse struct {
	Templates        map[string][]Template  `json:"templates"`
	SupportedTypes   []scoring.Type         `json:"supported_types"`
	ComplexityLevels []generator.Complexity `json:"complexity_levels"`
	Authenticated    bool                   `json:"authenticated"`
}

type Template struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
