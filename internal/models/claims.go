package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims - поля access токена, который выдаёт внешний провайдер идентификации.
// UserID хранится в стандартном поле sub.
type Claims struct {
	Email                string `json:"email"`
	Role                 string `json:"role"`
	jwt.RegisteredClaims        // Subject, ExpiresAt, IssuedAt и т.д.
}

// UserID разбирает Subject как UUID пользователя.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a valid user id", ErrTokenInvalid)
	}
	return id, nil
}
