package prompts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/events"
	"github.com/promptforge-ai/promptforge/internal/generator"
	"github.com/promptforge-ai/promptforge/internal/metrics"
	"github.com/promptforge-ai/promptforge/internal/quota"
	"github.com/promptforge-ai/promptforge/internal/scoring"
	"github.com/promptforge-ai/promptforge/internal/users"
)

// QuotaExceededError reports a denied admission decision so the handler
// can render the 429 payload with the user's numbers.
type QuotaExceededError struct {
	Limit int
	Used  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit reached: %d of %d used", e.Used, e.Limit)
}

// EventPublisher is the subset of the NATS publisher the pipeline needs.
// A nil publisher disables event emission, which keeps the service
// usable when NATS is not configured.
type EventPublisher interface {
	PublishGenerationEvent(ctx context.Context, event events.GenerationEvent) error
	PublishAuditEvent(ctx context.Context, event events.AuditEvent) error
}

type Service struct {
	repo      Repository
	guard     *quota.Guard
	gen       generator.Service
	userSvc   *users.Service
	publisher EventPublisher
	modelName string
}

func NewService(repo Repository, guard *quota.Guard, gen generator.Service, userSvc *users.Service, publisher EventPublisher, modelName string) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		gen:       gen,
		userSvc:   userSvc,
		publisher: publisher,
		modelName: modelName,
	}
}

// Generate runs the enhancement pipeline: admission check, model call
// (or deterministic fallback), scoring, accounting, persistence and
// event emission. userID is nil for guests, who are served from the
// same pipeline but never metered or persisted.
func (s *Service) Generate(ctx context.Context, userID *uuid.UUID, req GenerateRequest) (*GenerateResponse, error) {
	input := strings.TrimSpace(req.Prompt)
	if input == "" {
		return nil, errors.New("empty prompt")
	}

	promptType := scoring.ParseType(req.Type)
	complexity := generator.ParseComplexity(req.Complexity)

	if userID != nil {
		decision, err := s.guard.Check(ctx, *userID)
		if err != nil {
			if errors.Is(err, quota.ErrStorageUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("checking quota: %w", err)
		}
		if !decision.Allowed {
			s.publishAudit(ctx, *userID, "quota.denied", "warn", "quota", "",
				fmt.Sprintf("limit=%d used=%d", decision.Limit, decision.Used))
			return nil, &QuotaExceededError{Limit: decision.Limit, Used: decision.Used}
		}
	}

	gen := s.generatorFor(ctx, userID)

	start := time.Now()
	enhanced, err := gen.Enhance(ctx, generator.EnhanceRequest{
		Input:      input,
		Type:       promptType,
		Complexity: complexity,
	})
	duration := time.Since(start)

	fallback := false
	if err != nil {
		if !errors.Is(err, generator.ErrGeneration) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("generation failed, serving fallback template",
			"error", err, "type", promptType)
		enhanced = generator.Fallback(input, promptType)
		fallback = true
	}

	status := "success"
	if fallback {
		status = "fallback"
	}
	metrics.GenerationsTotal.WithLabelValues(status, string(promptType)).Inc()
	metrics.GenerationDuration.Observe(duration.Seconds())

	report := scoring.Score(enhanced, promptType)

	resp := &GenerateResponse{
		Status:             "success",
		ProfessionalPrompt: enhanced,
		Type:               promptType,
		Complexity:         string(complexity),
		QualityMetrics:     report,
		WordCount:          len(strings.Fields(enhanced)),
		CharacterCount:     len(enhanced),
		Authenticated:      userID != nil,
		Fallback:           fallback,
	}

	// Guests stop here: no accounting, no persistence, no audit trail.
	if userID == nil {
		s.publishGeneration(ctx, resp, nil, duration)
		return resp, nil
	}

	// Fallback responses are free: only real model output is charged.
	if !fallback {
		if _, err := s.guard.Consume(ctx, *userID); err != nil {
			// The user already has their text. Losing one count is
			// preferable to failing the request, but never silently.
			slog.Error("quota accounting failed after successful generation",
				"error", err, "user_id", *userID)
		}
	}

	if p := s.persist(ctx, *userID, input, resp); p != nil {
		resp.PromptID = &p.ID
	}

	s.publishGeneration(ctx, resp, userID, duration)
	return resp, nil
}

// generatorFor resolves the generation client for the request, preferring
// the user's own API key when they stored one.
func (s *Service) generatorFor(ctx context.Context, userID *uuid.UUID) generator.Service {
	if userID == nil || s.userSvc == nil {
		return s.gen
	}
	key, err := s.userSvc.GeneratorKey(ctx, *userID)
	if err != nil {
		slog.Warn("resolving user generator key, using platform key",
			"error", err, "user_id", *userID)
		return s.gen
	}
	if key == "" {
		return s.gen
	}
	return s.gen.WithAPIKey(key)
}

func (s *Service) persist(ctx context.Context, userID uuid.UUID, input string, resp *GenerateResponse) *Prompt {
	p := &Prompt{
		ID:         uuid.New(),
		UserID:     userID,
		Input:      input,
		Enhanced:   resp.ProfessionalPrompt,
		Type:       resp.Type,
		Complexity: resp.Complexity,
		Score:      resp.QualityMetrics.Score,
		WordCount:  resp.WordCount,
		CharCount:  resp.CharacterCount,
		ModelUsed:  s.modelName,
		Fallback:   resp.Fallback,
		CreatedAt:  time.Now(),
	}

	// Embedding is best effort: history search degrades to absent
	// results for this prompt if the embedding endpoint is down.
	if embedding, err := s.gen.Embed(ctx, resp.ProfessionalPrompt); err == nil {
		p.Embedding = embedding
	} else {
		slog.Debug("embedding prompt for search", "error", err)
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		slog.Error("persisting prompt", "error", err, "user_id", userID)
		return nil
	}
	return p
}

func (s *Service) publishGeneration(ctx context.Context, resp *GenerateResponse, userID *uuid.UUID, duration time.Duration) {
	if s.publisher == nil {
		return
	}

	event := events.GenerationEvent{
		RequestID:  uuid.New().String(),
		Guest:      userID == nil,
		PromptType: string(resp.Type),
		Complexity: resp.Complexity,
		Fallback:   resp.Fallback,
		Score:      resp.QualityMetrics.Score,
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if userID != nil {
		event.UserID = *userID
	}
	if err := s.publisher.PublishGenerationEvent(ctx, event); err != nil {
		slog.Warn("publishing generation event", "error", err)
	}

	if userID != nil {
		resourceID := ""
		if resp.PromptID != nil {
			resourceID = resp.PromptID.String()
		}
		s.publishAudit(ctx, *userID, "prompt.generated", "info", "prompt", resourceID,
			fmt.Sprintf("type=%s fallback=%t score=%.1f", resp.Type, resp.Fallback, resp.QualityMetrics.Score))
	}
}

func (s *Service) publishAudit(ctx context.Context, userID uuid.UUID, eventType, severity, resourceType, resourceID, details string) {
	if s.publisher == nil {
		return
	}
	event := events.AuditEvent{
		UserID:       userID,
		EventType:    eventType,
		Severity:     severity,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Timestamp:    time.Now(),
	}
	if err := s.publisher.PublishAuditEvent(ctx, event); err != nil {
		slog.Warn("publishing audit event", "error", err, "event_type", eventType)
	}
}

// Analyze scores an existing prompt and asks the model for a critique.
// The deterministic score always comes back; the critique degrades to
// the scorer's own recommendations when the model is unreachable.
func (s *Service) Analyze(ctx context.Context, userID *uuid.UUID, req AnalyzeRequest) (*AnalyzeResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("empty prompt")
	}

	promptType := scoring.ParseType(req.Type)
	report := scoring.Score(prompt, promptType)

	gen := s.generatorFor(ctx, userID)
	analysis, err := gen.Analyze(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("prompt analysis call failed, using scorer recommendations", "error", err)
		analysis = strings.Join(report.Recommendations, "\n")
	}

	resp := &AnalyzeResponse{
		Status:         "success",
		Analysis:       analysis,
		QualityMetrics: report,
		Authenticated:  userID != nil,
	}

	if userID != nil {
		a := &Analysis{
			ID:             uuid.New(),
			UserID:         *userID,
			OriginalPrompt: prompt,
			Analysis:       analysis,
			CreatedAt:      time.Now(),
		}
		if err := s.repo.InsertAnalysis(ctx, a); err != nil {
			slog.Error("persisting analysis", "error", err, "user_id", *userID)
		} else {
			resp.AnalysisID = &a.ID
		}
	}

	return resp, nil
}

// History returns the user's saved prompts, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prompt, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Get returns one prompt, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Prompt, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	if p.UserID != userID {
		return nil, ErrNotOwned
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishAudit(ctx, userID, "prompt.deleted", "info", "prompt", id.String(), "")
	return nil
}

// Search embeds the query and returns the user's nearest saved prompts.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]Prompt, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}

	embedding, err := s.gen.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}
	return s.repo.SearchSimilar(ctx, userID, embedding, limit)
}

// Stats assembles the usage panel: lifetime and per-type prompt counts
// from the prompts table, today's usage from the quota counter.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	user, err := s.userSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	status, err := s.guard.Status(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading quota status: %w", err)
	}

	byType, err := s.repo.CountByUserPerType(ctx, userID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byType {
		total += n
	}

	created := user.CreatedAt
	return &Stats{
		TotalPrompts:   total,
		PromptsToday:   status.Used,
		DailyLimit:     status.Limit,
		Plan:           user.Plan,
		PromptsByType:  byType,
		AccountCreated: &created,
	}, nil
}

// Templates returns the static catalog.
func (s *Service) Templates(authenticated bool) TemplatesResponse {
	return TemplatesResponse{
		Templates:        promptTemplates,
		SupportedTypes:   scoring.SupportedTypes,
		ComplexityLevels: generator.ComplexityLevels,
		Authenticated:    authenticated,
	}
}
