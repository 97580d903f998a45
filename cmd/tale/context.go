package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"cuentee/internal/config"
	"cuentee/internal/generation"
	"cuentee/internal/identity"
	"cuentee/internal/logger"
	"cuentee/internal/models"
	"cuentee/internal/session"

	"go.uber.org/zap"
)

var errNoCredentials = errors.New("no access token: pass --token, set CUENTEE_ACCESS_TOKEN, or set CUENTEE_IDENTITY_URL, CUENTEE_EMAIL and CUENTEE_PASSWORD")

type commandContext struct {
	tokenFlag *string
	apiFlag   *string

	configOnce sync.Once
	config     *config.CLIConfig
	logger     *zap.Logger
	configErr  error

	identity *identity.Client
	sessions *session.Cache[*identity.Session]
}

func newCommandContext(tokenFlag, apiFlag *string) *commandContext {
	return &commandContext{
		tokenFlag: tokenFlag,
		apiFlag:   apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.CLIConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadCLIConfig()
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
			cfg.APIURL = strings.TrimSpace(*c.apiFlag)
		}
		log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "console", OutputPath: "stderr"})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = log
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// accessToken возвращает токен: флаг, затем CUENTEE_ACCESS_TOKEN, затем вход по паролю.
func (c *commandContext) accessToken(ctx context.Context) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag), nil
	}
	if cfg.AccessToken != "" {
		return cfg.AccessToken, nil
	}
	if !cfg.HasCredentials() {
		return "", errNoCredentials
	}

	if c.sessions == nil {
		client, err := c.identityClient()
		if err != nil {
			return "", err
		}
		c.sessions = newSessionCache(client, cfg.Email, cfg.Password, c.log())
	}
	sess, err := c.sessions.Get(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil || sess.AccessToken == "" {
		return "", errNoCredentials
	}
	return sess.AccessToken, nil
}

// withToken вызывает fn с access токеном. Если API отверг токен, выданный
// провайдером, сессия обновляется и fn вызывается ещё один раз.
func (c *commandContext) withToken(ctx context.Context, fn func(token string) error) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	err = fn(token)
	if !isAuthError(err) || c.sessions == nil {
		return err
	}

	c.log().Info("Access token rejected, renewing session")
	c.sessions.Clear()
	if token, err = c.accessToken(ctx); err != nil {
		return err
	}
	return fn(token)
}

func isAuthError(err error) bool {
	var apiErr *generation.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	return errors.Is(err, generation.ErrAuthenticationRequired) || errors.Is(err, models.ErrUnauthorized)
}

func (c *commandContext) identityClient() (*identity.Client, error) {
	if c.identity != nil {
		return c.identity, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.IdentityURL == "" {
		return nil, errors.New("identity provider is not configured: set CUENTEE_IDENTITY_URL")
	}
	client, err := identity.NewClient(cfg.IdentityURL, cfg.IdentityAPIKey, cfg.RequestTimeout, c.log())
	if err != nil {
		return nil, err
	}
	c.identity = client
	return client, nil
}

// newSessionCache обновляет сессию по refresh токену, если он есть,
// иначе входит по email и паролю.
func newSessionCache(client *identity.Client, email, password string, log *zap.Logger) *session.Cache[*identity.Session] {
	var last *identity.Session
	fetch := func(ctx context.Context) (*identity.Session, error) {
		if last != nil && last.RefreshToken != "" {
			sess, err := client.Refresh(ctx, last.RefreshToken)
			if err == nil {
				last = sess
				return sess, nil
			}
			log.Debug("Refresh failed, signing in again", zap.Error(err))
		}
		sess, err := client.SignInWithPassword(ctx, email, password)
		if err != nil {
			return nil, err
		}
		last = sess
		return sess, nil
	}
	return session.New(fetch, session.Config[*identity.Session]{
		Valid: func(s *identity.Session) bool { return !s.Expired(time.Now()) },
	}, log)
}

func (c *commandContext) apiClient() (*generation.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return generation.NewClient(cfg.APIURL, cfg.RequestTimeout, c.log())
}

func (c *commandContext) newSession(api generation.TaskAPI) *generation.Session {
	cfg, _ := c.ensureConfig()
	opts := []generation.Option{generation.WithLogger(c.log())}
	if cfg != nil {
		opts = append(opts, generation.WithPollInterval(cfg.PollInterval), generation.WithMaxPolls(cfg.MaxPolls))
	}
	return generation.NewSession(api, opts...)
}
