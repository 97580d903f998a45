package config

import (
	"fmt"
	"time"

	"cuentee/internal/utils"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// Config содержит конфигурацию сервера.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"development"`
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	Auth       AuthConfig
	Generation GenerationConfig
	Storage    StorageConfig
	Log        LogConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type DatabaseConfig struct {
	Host          string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port          string        `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User          string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password      string        `yaml:"password" env:"DB_PASSWORD"` // или секрет db_password
	Name          string        `yaml:"name" env:"DB_NAME" env-default:"cuentee"`
	SSLMode       string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns      int32         `yaml:"max_conns" env:"DB_MAX_CONNECTIONS" env-default:"10"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"DB_IDLE_TIMEOUT" env-default:"5m"`
	RunMigrations bool          `yaml:"run_migrations" env:"DB_RUN_MIGRATIONS" env-default:"true"`
}

// DSN возвращает строку подключения к PostgreSQL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type RabbitMQConfig struct {
	// Пустой URI отключает публикацию событий.
	URI                 string `yaml:"uri" env:"RABBITMQ_URI"`
	StoryGeneratedQueue string `yaml:"story_generated_queue" env:"STORY_GENERATED_QUEUE" env-default:"story_generated"`
}

type AuthConfig struct {
	// Секрет подписи access токенов провайдера идентификации (или секрет jwt_secret).
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Audience  string `yaml:"audience" env:"AUTH_JWT_AUDIENCE" env-default:"authenticated"`
	// Общий секрет для /internal эндпоинтов (или секрет internal_service_token).
	InternalServiceToken string `yaml:"internal_service_token" env:"INTERNAL_SERVICE_TOKEN"`
}

type GenerationConfig struct {
	APIBaseURL     string        `yaml:"api_base_url" env:"GENERATION_API_URL" env-required:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"GENERATION_REQUEST_TIMEOUT" env-default:"30s"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"GENERATION_POLL_INTERVAL" env-default:"2s"`
	MaxPolls       int           `yaml:"max_polls" env:"GENERATION_MAX_POLLS" env-default:"300"`
	// Сколько хранится снимок задачи в Redis после последнего обновления.
	JobTTL        time.Duration `yaml:"job_ttl" env:"GENERATION_JOB_TTL" env-default:"24h"`
	DefaultTitle  string        `yaml:"default_title" env:"GENERATION_DEFAULT_TITLE" env-default:"AI Generated Tale"`
	CleanupPeriod time.Duration `yaml:"cleanup_period" env:"GENERATION_CLEANUP_PERIOD" env-default:"10m"`
	// Предел одновременно выполняемых задач в одном экземпляре сервиса.
	MaxActiveTasks int `yaml:"max_active_tasks" env:"GENERATION_MAX_ACTIVE_TASKS" env-default:"100"`
}

// LockTTL - время жизни блокировки пользователя: весь потолок опроса плюс запас.
func (c GenerationConfig) LockTTL() time.Duration {
	return time.Duration(c.MaxPolls)*c.PollInterval + time.Minute
}

type StorageConfig struct {
	BaseURL string `yaml:"base_url" env:"STORAGE_URL"`
	// Ключ service role (или секрет storage_service_key).
	ServiceKey string `yaml:"service_key" env:"STORAGE_SERVICE_KEY"`
	Bucket     string `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"cuentee_images"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	OutputPath string `yaml:"output_path" env:"LOG_OUTPUT_PATH"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

// LoadConfig читает config.yml (если есть) или переменные окружения,
// затем подставляет секреты из Docker Secrets.
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		logger.Warn("Failed to read config file, falling back to environment",
			zap.String("path", configPath), zap.Error(err))
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if err := cfg.loadSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("generationAPI", cfg.Generation.APIBaseURL),
		zap.Bool("rabbitmqEnabled", cfg.RabbitMQ.URI != ""),
		zap.Bool("storageEnabled", cfg.Storage.BaseURL != ""),
	)
	return &cfg, nil
}

func (c *Config) loadSecrets() error {
	var err error
	if c.Database.Password, err = utils.SecretOrDefault("db_password", c.Database.Password); err != nil {
		return err
	}
	if c.Auth.JWTSecret, err = utils.SecretOrDefault("jwt_secret", c.Auth.JWTSecret); err != nil {
		return err
	}
	if c.Auth.InternalServiceToken, err = utils.SecretOrDefault("internal_service_token", c.Auth.InternalServiceToken); err != nil {
		return err
	}
	if c.Storage.ServiceKey, err = utils.SecretOrDefault("storage_service_key", c.Storage.ServiceKey); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required (AUTH_JWT_SECRET or secret jwt_secret)")
	}
	if c.Generation.PollInterval <= 0 || c.Generation.MaxPolls <= 0 {
		return fmt.Errorf("generation poll interval and max polls must be positive")
	}
	return nil
}
