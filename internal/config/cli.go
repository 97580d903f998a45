package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CLIConfig - настройки утилиты tale. Переменные окружения с префиксом CUENTEE_.
type CLIConfig struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:8000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	MaxPolls       int           `envconfig:"MAX_POLLS" default:"300"`

	// Готовый access токен. Если пуст, выполняется вход по email/паролю.
	AccessToken string `envconfig:"ACCESS_TOKEN"`

	IdentityURL    string `envconfig:"IDENTITY_URL"`
	IdentityAPIKey string `envconfig:"IDENTITY_API_KEY"`
	Email          string `envconfig:"EMAIL"`
	Password       string `envconfig:"PASSWORD"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadCLIConfig читает CUENTEE_* переменные окружения.
func LoadCLIConfig() (*CLIConfig, error) {
	var cfg CLIConfig
	if err := envconfig.Process("cuentee", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load CLI configuration: %w", err)
	}
	return &cfg, nil
}

// HasCredentials сообщает, можно ли войти по email и паролю.
func (c *CLIConfig) HasCredentials() bool {
	return c.IdentityURL != "" && c.Email != "" && c.Password != ""
}
