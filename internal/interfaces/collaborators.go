package interfaces

import (
	"context"

	"cuentee/internal/models"
)

// ObjectStorage удаляет файлы из бакета объектного хранилища.
type ObjectStorage interface {
	Remove(ctx context.Context, bucket string, paths []string) error
}

// StoryEventPublisher публикует события о сгенерированных рассказах.
type StoryEventPublisher interface {
	PublishStoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error
}

// ClientNotifier отправляет сообщения WebSocket клиентам пользователя.
type ClientNotifier interface {
	SendToUser(userID, messageType string, payload interface{})
}
