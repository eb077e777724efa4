package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/auth"
)

type Service struct {
	repo      Repository
	encryptor *auth.Encryptor
}

func NewService(repo Repository, encryptor *auth.Encryptor) *Service {
	return &Service{repo: repo, encryptor: encryptor}
}

func (s *Service) Create(ctx context.Context, email, passwordHash, displayName string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Plan:         PlanFree,
		DailyLimit:   DefaultDailyLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

// CreateAccount, AccountByEmail and EmailExists satisfy auth.AccountService.

func (s *Service) CreateAccount(ctx context.Context, email, passwordHash, displayName string) (*auth.Account, error) {
	user, err := s.Create(ctx, email, passwordHash, displayName)
	if err != nil {
		return nil, err
	}
	return accountOf(user), nil
}

func (s *Service) AccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	return accountOf(user), nil
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func accountOf(u *User) *auth.Account {
	return &auth.Account{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}
}

// SetGeneratorKey encrypts and stores a user-supplied generator API key.
// Requests from the user are then billed against their own key instead
// of the platform one.
func (s *Service) SetGeneratorKey(ctx context.Context, id uuid.UUID, apiKey string) error {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting generator key: %w", err)
	}
	return s.repo.SetGeneratorKey(ctx, id, &encrypted)
}

func (s *Service) ClearGeneratorKey(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetGeneratorKey(ctx, id, nil)
}

// GeneratorKey returns the decrypted per-user key, or "" when the user
// has not supplied one.
func (s *Service) GeneratorKey(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if user == nil || user.GeneratorKeyEncrypted == nil {
		return "", nil
	}
	key, err := s.encryptor.Decrypt(*user.GeneratorKeyEncrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting generator key: %w", err)
	}
	return key, nil
}
