// Package storage - REST клиент объектного хранилища (storage/v1 API).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cuentee/internal/interfaces"

	"go.uber.org/zap"
)

// Client работает от имени сервисной роли.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ interfaces.ObjectStorage = (*Client)(nil)

// NewClient создаёт клиент хранилища.
func NewClient(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for storage: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("StorageClient"),
	}, nil
}

type removeRequest struct {
	Prefixes []string `json:"prefixes"`
}

// Remove удаляет объекты paths из бакета одним запросом.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, url.PathEscape(bucket))
	log := c.logger.With(zap.String("bucket", bucket), zap.Int("count", len(paths)))

	body, err := json.Marshal(removeRequest{Prefixes: paths})
	if err != nil {
		return fmt.Errorf("internal error marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request to storage failed", zap.Error(err))
		return fmt.Errorf("failed to communicate with storage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn("Storage returned error", zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
		return fmt.Errorf("storage remove failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Info("Objects removed from storage")
	return nil
}
