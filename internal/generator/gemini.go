package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/scoring"
)

const systemInstruction = `You are a professional prompt engineer. Rewrite the user's raw input ` +
	`into a clear, specific, well-structured prompt suitable for a generative AI model. ` +
	`State the objective, required format, constraints, and tone explicitly. ` +
	`Reply with the enhanced prompt only, no preamble.`

// GeminiClient talks to the Google Generative Language REST API.
type GeminiClient struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client
}

func NewGeminiClient(cfg config.GeneratorConfig) *GeminiClient {
	return &GeminiClient{
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}
}

// WithAPIKey returns a copy bound to the given key, sharing the HTTP client.
func (c *GeminiClient) WithAPIKey(key string) Service {
	cp := *c
	cp.apiKey = key
	return &cp
}

// Request/response shapes of the generateContent and embedContent endpoints.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type embedRequest struct {
	Content geminiContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Enhance asks the model to rewrite the raw input professionally, framed by
// the prompt type and requested complexity.
func (c *GeminiClient) Enhance(ctx context.Context, req EnhanceRequest) (string, error) {
	return c.generate(ctx, buildEnhancementContext(req))
}

// Analyze asks the model to critique an existing prompt.
func (c *GeminiClient) Analyze(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, buildAnalysisRequest(prompt))
}

func (c *GeminiClient) generate(ctx context.Context, input string) (string, error) {
	body := generateRequest{
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: input}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var resp generateResponse
	if err := c.post(ctx, url, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidate response", ErrGeneration)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Embed returns the embedding vector for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body := embedRequest{Content: geminiContent{Parts: []geminiPart{{Text: text}}}}
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, c.embeddingModel, c.apiKey)

	var resp embedResponse
	if err := c.post(ctx, url, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrGeneration)
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrGeneration, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d after %s: %s",
			ErrGeneration, httpResp.StatusCode, time.Since(start).Round(time.Millisecond), truncate(raw, 256))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrGeneration, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// buildEnhancementContext frames the raw input with its type and complexity
// so the model applies the right enhancement framework.
func buildEnhancementContext(req EnhanceRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ENHANCEMENT REQUEST:\nUser Input: %q\nPrompt Type: %s\nDesired Complexity: %s\n\n",
		req.Input, strings.ToUpper(string(req.Type)), strings.ToUpper(string(req.Complexity)))
	fmt.Fprintf(&sb, "Please apply the appropriate enhancement framework for %s prompts.", req.Type)

	switch req.Type {
	case scoring.TypeImage:
		sb.WriteString(" Focus on visual details, composition, and artistic elements.")
	case scoring.TypeVideo:
		sb.WriteString(" Emphasize movement, sequencing, and cinematic techniques.")
	case scoring.TypeCode:
		sb.WriteString(" Include specific requirements, edge cases, and testing scenarios.")
	}

	sb.WriteString("\n\nEnhanced Professional Prompt:")
	return sb.String()
}

func buildAnalysisRequest(prompt string) string {
	var sb strings.Builder
	sb.WriteString("Analyze this existing prompt and suggest improvements:\n\nEXISTING PROMPT:\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\nPlease provide:\n")
	sb.WriteString("1. Strengths of the current prompt\n")
	sb.WriteString("2. Areas for improvement\n")
	sb.WriteString("3. Specific suggestions to enhance clarity, specificity, and effectiveness\n")
	sb.WriteString("4. Alternative phrasing for key sections\n")
	sb.WriteString("5. Missing elements that should be added\n\n")
	sb.WriteString("Be constructive and specific in your feedback.")
	return sb.String()
}
