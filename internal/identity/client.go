// Package identity - REST клиент внешнего провайдера идентификации
// (GoTrue-совместимый API: /auth/v1/token, /auth/v1/user).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cuentee/internal/models"

	"go.uber.org/zap"
)

// User - пользователь провайдера.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session - выданные провайдером токены.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expired сообщает, истёк ли access токен к моменту now (с запасом в минуту).
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Add(time.Minute).Unix() >= s.ExpiresAt
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client обращается к провайдеру с публичным (anon) ключом проекта.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создает клиент провайдера идентификации.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for identity provider: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		logger.Warn("Identity provider API key is not set, requests will likely fail")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("IdentityClient"),
	}, nil
}

// SignInWithPassword выполняет вход по email и паролю.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	log := c.logger.With(zap.String("email", email))
	payload := map[string]string{"email": email, "password": password}

	var sess Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &sess); err != nil {
		log.Warn("Sign in failed", zap.Error(err))
		return nil, err
	}
	log.Info("Signed in", zap.String("userID", sess.User.ID))
	return &sess, nil
}

// Refresh обменивает refresh токен на новую сессию.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var sess Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", payload, &sess); err != nil {
		c.logger.Warn("Session refresh failed", zap.Error(err))
		return nil, err
	}
	c.logger.Debug("Session refreshed", zap.String("userID", sess.User.ID))
	return &sess, nil
}

// GetUser возвращает пользователя по access токену.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, payload, out any) error {
	reqURL := c.baseURL + path
	log := c.logger.With(zap.String("url", reqURL))

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("internal error marshalling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request to identity provider failed", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("request to identity provider timed out: %w", err)
		}
		return fmt.Errorf("failed to communicate with identity provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read identity provider response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, out); err != nil {
			log.Error("Failed to unmarshal identity provider response", zap.ByteString("body", respBody), zap.Error(err))
			return fmt.Errorf("invalid success response format from identity provider: %w", err)
		}
		return nil
	}

	var errResp apiError
	_ = json.Unmarshal(respBody, &errResp)
	msg := errResp.text()
	log.Warn("Received error response from identity provider", zap.Int("status", resp.StatusCode), zap.String("message", msg))

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if path != "/auth/v1/user" {
			return fmt.Errorf("%w: %s", models.ErrInvalidCredentials, msg)
		}
		return fmt.Errorf("%w: %s", models.ErrBadRequest, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", models.ErrUnauthorized, msg)
	}
	return fmt.Errorf("received unexpected status %d from identity provider: %s", resp.StatusCode, msg)
}
