// Package messaging публикует доменные события в RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Dial устанавливает соединение с брокером.
func Dial(uri string, logger *zap.Logger) (*amqp.Connection, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	if logger != nil {
		logger.Info("Connected to RabbitMQ")
	}
	return conn, nil
}

// rabbitMQStoryPublisher отправляет StoryGeneratedEvent в durable очередь.
type rabbitMQStoryPublisher struct {
	mu        sync.Mutex
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

var _ interfaces.StoryEventPublisher = (*rabbitMQStoryPublisher)(nil)

// NewRabbitMQStoryPublisher открывает канал и объявляет очередь queueName.
func NewRabbitMQStoryPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (*rabbitMQStoryPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("StoryPublisher").With(zap.String("queue", queueName))

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare queue", zap.Error(err))
		return nil, fmt.Errorf("story publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log.Info("Queue declared")

	return &rabbitMQStoryPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishStoryGenerated публикует событие о сохранённом рассказе.
func (p *rabbitMQStoryPublisher) PublishStoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal story generated event: %w", err)
	}

	// amqp.Channel не потокобезопасен для публикации
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.JobID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish story generated event",
			zap.String("storyID", event.StoryID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish story generated event: %w", err)
	}

	p.logger.Debug("Story generated event published", zap.String("storyID", event.StoryID.String()))
	return nil
}

// Close закрывает канал.
func (p *rabbitMQStoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct {
	logger *zap.Logger
}

var _ interfaces.StoryEventPublisher = (*NoopPublisher)(nil)

// NewNoopPublisher создаёт публикатор, который только пишет в лог.
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger.Named("NoopPublisher")}
}

// PublishStoryGenerated ничего не публикует.
func (p *NoopPublisher) PublishStoryGenerated(_ context.Context, event models.StoryGeneratedEvent) error {
	p.logger.Debug("Messaging disabled, event skipped", zap.String("storyID", event.StoryID.String()))
	return nil
}
