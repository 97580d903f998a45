// Package session кэширует сессию провайдера идентификации и ограничивает
// частоту обращений к нему.
package session

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL - сколько живёт закэшированная сессия.
	DefaultTTL = 5 * time.Minute
	// DefaultMinFetchInterval - минимальная пауза между обращениями к провайдеру.
	DefaultMinFetchInterval = 10 * time.Second
)

// FetchFunc получает свежую сессию у провайдера.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config настраивает Cache. Нулевые значения заменяются значениями по умолчанию.
type Config[T any] struct {
	TTL              time.Duration
	MinFetchInterval time.Duration
	Now              func() time.Time
	// Valid сообщает, можно ли кэшировать значение. По умолчанию - любое ненулевое.
	Valid func(v T) bool
}

// Cache хранит последнюю полученную сессию.
type Cache[T any] struct {
	fetch    FetchFunc[T]
	ttl      time.Duration
	minFetch time.Duration
	now      func() time.Time
	valid    func(T) bool
	logger   *zap.Logger
	group    singleflight.Group

	mu        sync.Mutex
	value     T
	has       bool
	lastFetch time.Time
}

// New создаёт кэш поверх fetch.
func New[T any](fetch FetchFunc[T], cfg Config[T], logger *zap.Logger) *Cache[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MinFetchInterval <= 0 {
		cfg.MinFetchInterval = DefaultMinFetchInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Valid == nil {
		cfg.Valid = func(v T) bool { return !reflect.ValueOf(&v).Elem().IsZero() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{
		fetch:    fetch,
		ttl:      cfg.TTL,
		minFetch: cfg.MinFetchInterval,
		now:      cfg.Now,
		valid:    cfg.Valid,
		logger:   logger.Named("SessionCache"),
	}
}

// Get возвращает сессию из кэша, пока она не устарела.
// Иначе обращается к провайдеру, но не чаще одного раза в MinFetchInterval;
// в пределах этого интервала возвращается то, что есть в кэше (возможно, нулевое значение).
// Параллельные обновления объединяются в один запрос.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	now := c.now()

	c.mu.Lock()
	if c.has && now.Sub(c.lastFetch) < c.ttl {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	if !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.minFetch {
		v := c.value
		c.mu.Unlock()
		c.logger.Debug("Session fetch throttled")
		return v, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do("session", func() (interface{}, error) {
		// кэш мог обновиться, пока мы ждали
		c.mu.Lock()
		if c.has && c.now().Sub(c.lastFetch) < c.ttl {
			v := c.value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		fresh, err := c.fetch(ctx)
		if err != nil {
			return fresh, err
		}
		// пустая сессия не кэшируется, но ограничение частоты действует
		c.mu.Lock()
		c.value = fresh
		c.has = c.valid(fresh)
		c.lastFetch = c.now()
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		c.logger.Warn("Session fetch error", zap.Error(err))
		var zero T
		return zero, err
	}
	if shared {
		c.logger.Debug("Session fetch shared with concurrent caller")
	}
	return v.(T), nil
}

// Clear сбрасывает кэш и ограничение частоты.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.has = false
	c.lastFetch = time.Time{}
}

// Update кладёт в кэш сессию, полученную в обход fetch (например, после входа).
func (c *Cache[T]) Update(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.has = c.valid(v)
	c.lastFetch = c.now()
}
