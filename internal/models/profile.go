package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan - тарифный план пользователя.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
)

// Valid сообщает, является ли значение известным планом.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPlus
}

// DefaultSignupCredits начисляются при создании профиля.
const DefaultSignupCredits = 10

// MinUsernameLength - минимальная длина имени пользователя.
const MinUsernameLength = 3

// Profile - профиль пользователя с балансом кредитов.
type Profile struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Username       *string    `json:"username" db:"username"`
	Credits        int        `json:"credits" db:"credits"`
	Plan           Plan       `json:"plan" db:"plan"`
	PlusSince      *time.Time `json:"plus_since" db:"plus_since"`
	LastCreditedAt *time.Time `json:"last_credited_at" db:"last_credited_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
