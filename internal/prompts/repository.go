package prompts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNotOwned is returned when a prompt exists but belongs to another user.
var ErrNotOwned = errors.New("prompt owned by another user")

type Repository interface {
	Insert(ctx context.Context, p *Prompt) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prompt, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prompt, int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]Prompt, error)
	CountByUserToday(ctx context.Context, userID uuid.UUID, today string) (int, error)
	CountByUserPerType(ctx context.Context, userID uuid.UUID) (map[string]int64, error)
	InsertAnalysis(ctx context.Context, a *Analysis) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const promptColumns = `id, user_id, original_input, professional_prompt, prompt_type, complexity,
	quality_score, word_count, character_count, model_used, fallback, created_at`

func (r *postgresRepository) Insert(ctx context.Context, p *Prompt) error {
	query := `
		INSERT INTO prompts (id, user_id, original_input, professional_prompt, prompt_type, complexity,
			quality_score, word_count, character_count, model_used, fallback, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var embedding any
	if len(p.Embedding) > 0 {
		embedding = pgvector.NewVector(p.Embedding)
	}

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.Input, p.Enhanced, p.Type, p.Complexity,
		p.Score, p.WordCount, p.CharCount, p.ModelUsed, p.Fallback, embedding, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting prompt: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	query := `SELECT ` + promptColumns + ` FROM prompts WHERE id = $1`

	p, err := scanPrompt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying prompt by id: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prompt, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prompts WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting prompts: %w", err)
	}

	query := `SELECT ` + promptColumns + `
		FROM prompts WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying prompt history: %w", err)
	}
	defer rows.Close()

	list, err := collectPrompts(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return pgx.ErrNoRows
	}
	if p.UserID != userID {
		return ErrNotOwned
	}

	_, err = r.pool.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}
	return nil
}

// SearchSimilar returns the user's prompts nearest to the query embedding
// by cosine distance. Prompts saved without an embedding are skipped.
func (r *postgresRepository) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]Prompt, error) {
	query := `SELECT ` + promptColumns + `
		FROM prompts
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("searching similar prompts: %w", err)
	}
	defer rows.Close()

	return collectPrompts(rows)
}

func (r *postgresRepository) CountByUserToday(ctx context.Context, userID uuid.UUID, today string) (int, error) {
	query := `SELECT COUNT(*) FROM prompts WHERE user_id = $1 AND created_at::date = $2::date`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, today).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting today's prompts: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) CountByUserPerType(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	query := `SELECT prompt_type, COUNT(*) FROM prompts WHERE user_id = $1 GROUP BY prompt_type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("counting prompts by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var promptType string
		var count int64
		if err := rows.Scan(&promptType, &count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[promptType] = count
	}
	return counts, rows.Err()
}

func (r *postgresRepository) InsertAnalysis(ctx context.Context, a *Analysis) error {
	query := `
		INSERT INTO analyses (id, user_id, original_prompt, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.UserID, a.OriginalPrompt, a.Analysis, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	return nil
}

func scanPrompt(row pgx.Row) (*Prompt, error) {
	p := &Prompt{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Input, &p.Enhanced, &p.Type, &p.Complexity,
		&p.Score, &p.WordCount, &p.CharCount, &p.ModelUsed, &p.Fallback, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func collectPrompts(rows pgx.Rows) ([]Prompt, error) {
	var list []Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
