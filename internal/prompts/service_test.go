package prompts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/generator"
	"github.com/promptforge-ai/promptforge/internal/quota"
	"github.com/promptforge-ai/promptforge/internal/users"
)

type fakeGenerator struct {
	enhanceOut string
	enhanceErr error
	analyzeOut string
	analyzeErr error
	embedOut   []float32
	embedErr   error
	key        string
	shared     *genState
}

type genState struct {
	lastKey     string
	enhanceCall int
}

func newFakeGenerator(out string) *fakeGenerator {
	return &fakeGenerator{enhanceOut: out, shared: &genState{}}
}

func (g *fakeGenerator) Enhance(_ context.Context, _ generator.EnhanceRequest) (string, error) {
	g.shared.enhanceCall++
	g.shared.lastKey = g.key
	if g.enhanceErr != nil {
		return "", g.enhanceErr
	}
	return g.enhanceOut, nil
}

func (g *fakeGenerator) Analyze(_ context.Context, _ string) (string, error) {
	if g.analyzeErr != nil {
		return "", g.analyzeErr
	}
	return g.analyzeOut, nil
}

func (g *fakeGenerator) Embed(_ context.Context, _ string) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	return g.embedOut, nil
}

func (g *fakeGenerator) WithAPIKey(key string) generator.Service {
	copied := *g
	copied.key = key
	return &copied
}

type fakeRepo struct {
	mu       sync.Mutex
	saved    []Prompt
	analyses []Analysis
	failIns  bool
}

func (r *fakeRepo) Insert(_ context.Context, p *Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIns {
		return errors.New("insert failed")
	}
	r.saved = append(r.saved, *p)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.saved {
		if r.saved[i].ID == id {
			p := r.saved[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]Prompt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []Prompt
	for _, p := range r.saved {
		if p.UserID == userID {
			list = append(list, p)
		}
	}
	return list, int64(len(list)), nil
}

func (r *fakeRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.saved {
		if p.ID == id {
			if p.UserID != userID {
				return ErrNotOwned
			}
			r.saved = append(r.saved[:i], r.saved[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRepo) SearchSimilar(_ context.Context, userID uuid.UUID, _ []float32, limit int) ([]Prompt, error) {
	list, _, _ := r.ListByUser(context.Background(), userID, limit, 0)
	return list, nil
}

func (r *fakeRepo) CountByUserToday(_ context.Context, _ uuid.UUID, _ string) (int, error) {
	return 0, nil
}

func (r *fakeRepo) CountByUserPerType(_ context.Context, userID uuid.UUID) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, p := range r.saved {
		if p.UserID == userID {
			counts[string(p.Type)]++
		}
	}
	return counts, nil
}

func (r *fakeRepo) InsertAnalysis(_ context.Context, a *Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, *a)
	return nil
}

// memCounterStore is a minimal in-memory quota.CounterStore.
type memCounterStore struct {
	mu       sync.Mutex
	counters map[uuid.UUID]quota.UsageCounter
	failSave bool
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counters: make(map[uuid.UUID]quota.UsageCounter)}
}

func (s *memCounterStore) Get(_ context.Context, userID uuid.UUID) (*quota.UsageCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memCounterStore) CompareAndSave(_ context.Context, counter *quota.UsageCounter, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("save failed")
	}
	stored, ok := s.counters[counter.UserID]
	if expectedVersion == 0 {
		if ok {
			return quota.ErrVersionConflict
		}
	} else if !ok || stored.Version != expectedVersion {
		return quota.ErrVersionConflict
	}
	saved := *counter
	saved.Version = expectedVersion + 1
	s.counters[counter.UserID] = saved
	return nil
}

type fixture struct {
	svc   *Service
	guard *quota.Guard
	repo  *fakeRepo
	gen   *fakeGenerator
	mem   *memCounterStore
}

func newFixture(t *testing.T, dailyLimit int, gen *fakeGenerator) *fixture {
	t.Helper()
	mem := newMemCounterStore()
	store := quota.NewStore(mem, dailyLimit, 5, time.UTC)
	guard := quota.NewGuard(store, true)
	repo := &fakeRepo{}
	svc := NewService(repo, guard, gen, nil, nil, "gemini-1.5-flash")
	return &fixture{svc: svc, guard: guard, repo: repo, gen: gen, mem: mem}
}

func TestGenerate_Guest(t *testing.T) {
	f := newFixture(t, 100, newFakeGenerator("An enhanced prompt"))

	resp, err := f.svc.Generate(context.Background(), nil, GenerateRequest{Prompt: "write a poem", Type: "text"})
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "An enhanced prompt", resp.ProfessionalPrompt)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.PromptID)
	assert.Empty(t, f.repo.saved, "guest prompts are never persisted")
	assert.Empty(t, f.mem.counters, "guest usage is never metered")
}

func TestGenerate_AuthenticatedSuccess(t *testing.T) {
	f := newFixture(t, 100, newFakeGenerator("Professional output with enough words"))
	userID := uuid.New()

	resp, err := f.svc.Generate(context.Background(), &userID, GenerateRequest{Prompt: "write a poem", Type: "text", Complexity: "simple"})
	require.NoError(t, err)

	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.PromptID)
	require.Len(t, f.repo.saved, 1)
	assert.Equal(t, userID, f.repo.saved[0].UserID)
	assert.Equal(t, "gemini-1.5-flash", f.repo.saved[0].ModelUsed)

	c := f.mem.counters[userID]
	assert.Equal(t, 1, c.WindowCount, "one successful generation is charged once")
	assert.Equal(t, int64(1), c.TotalCount)
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	f := newFixture(t, 1, newFakeGenerator("output"))
	userID := uuid.New()

	_, err := f.svc.Generate(context.Background(), &userID, GenerateRequest{Prompt: "first"})
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), &userID, GenerateRequest{Prompt: "second"})
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 1, quotaErr.Limit)
	assert.Equal(t, 1, quotaErr.Used)
}

func TestGenerate_FallbackNotCharged(t *testing.T) {
	gen := newFakeGenerator("")
	gen.enhanceErr = generator.ErrGeneration
	f := newFixture(t, 100, gen)
	userID := uuid.New()

	resp, err := f.svc.Generate(context.Background(), &userID, GenerateRequest{Prompt: "write a poem", Type: "image"})
	require.NoError(t, err)

	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.ProfessionalPrompt)
	assert.Empty(t, f.mem.counters, "fallback responses are free")
}

func TestGenerate_AccountingFailureStillReturnsText(t *testing.T) {
	f := newFixture(t, 100, newFakeGenerator("output text"))
	f.mem.failSave = true
	userID := uuid.New()

	resp, err := f.svc.Generate(context.Background(), &userID, GenerateRequest{Prompt: "write a poem"})
	require.NoError(t, err, "accounting failure after a successful generation does not fail the request")
	assert.Equal(t, "output text", resp.ProfessionalPrompt)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	f := newFixture(t, 100, newFakeGenerator("output"))

	_, err := f.svc.Generate(context.Background(), nil, GenerateRequest{Prompt: "   "})
	assert.Error(t, err)
}

func TestGenerate_UsesUserAPIKey(t *testing.T) {
	gen := newFakeGenerator("output")
	mem := newMemCounterStore()
	guard := quota.NewGuard(quota.NewStore(mem, 100, 5, time.UTC), true)
	repo := &fakeRepo{}

	encryptor, err := auth.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	userRepo := &fakeUserRepo{users: make(map[uuid.UUID]*users.User)}
	userSvc := users.NewService(userRepo, encryptor)

	user, err := userSvc.Create(context.Background(), "byok@example.com", "hash", "")
	require.NoError(t, err)
	require.NoError(t, userSvc.SetGeneratorKey(context.Background(), user.ID, "user-owned-api-key"))

	svc := NewService(repo, guard, gen, userSvc, nil, "gemini-1.5-flash")

	_, err = svc.Generate(context.Background(), &user.ID, GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "user-owned-api-key", gen.shared.lastKey)
}

func TestAnalyze_DegradesToScorerRecommendations(t *testing.T) {
	gen := newFakeGenerator("")
	gen.analyzeErr = generator.ErrGeneration
	f := newFixture(t, 100, gen)

	resp, err := f.svc.Analyze(context.Background(), nil, AnalyzeRequest{Prompt: "short"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Analysis, "critique degrades to scorer recommendations")
}

func TestAnalyze_AuthenticatedIsPersisted(t *testing.T) {
	gen := newFakeGenerator("")
	gen.analyzeOut = "a thorough critique"
	f := newFixture(t, 100, gen)
	userID := uuid.New()

	resp, err := f.svc.Analyze(context.Background(), &userID, AnalyzeRequest{Prompt: "review my prompt"})
	require.NoError(t, err)
	require.NotNil(t, resp.AnalysisID)
	require.Len(t, f.repo.analyses, 1)
	assert.Equal(t, userID, f.repo.analyses[0].UserID)
	assert.Equal(t, "a thorough critique", f.repo.analyses[0].Analysis)
	assert.Empty(t, f.repo.saved, "analyses do not enter prompt history")
}

func TestTemplates_Catalog(t *testing.T) {
	f := newFixture(t, 100, newFakeGenerator("output"))

	resp := f.svc.Templates(false)
	assert.NotEmpty(t, resp.Templates["text"])
	assert.Len(t, resp.SupportedTypes, 6)
	assert.Len(t, resp.ComplexityLevels, 3)
	assert.False(t, resp.Authenticated)
}

// fakeUserRepo backs users.Service in the bring-your-own-key test.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*users.User
}

func (r *fakeUserRepo) Create(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := r.GetByEmail(ctx, email)
	return u != nil, nil
}

func (r *fakeUserRepo) SetGeneratorKey(_ context.Context, id uuid.UUID, encryptedKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.GeneratorKeyEncrypted = encryptedKey
	return nil
}
