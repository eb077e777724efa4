package users

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree          = "free"
	DefaultDailyLimit = 100
)

type User struct {
	ID                    uuid.UUID `json:"id"`
	Email                 string    `json:"email"`
	PasswordHash          string    `json:"-"`
	DisplayName           string    `json:"display_name,omitempty"`
	Plan                  string    `json:"plan"`
	DailyLimit            int       `json:"daily_limit"`
	GeneratorKeyEncrypted *string   `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
