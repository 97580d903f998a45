package generation

import "strings"

// Эндпоинты отправки задач.
const (
	DefaultEndpoint = "/stories/generate-story-async"
	GuidedEndpoint  = "/stories/generate_guided_story_async"
)

// GuidedPayload - параметры пошаговой генерации.
type GuidedPayload struct {
	AgeGroup        string `json:"age_group"`
	Protagonist     string `json:"protagonist"`
	ScientificTopic string `json:"scientific_topic"`
	Mission         string `json:"mission"`
	VisualStyle     string `json:"visual_style"`
}

// Request описывает одну отправку: либо свободная тема, либо guided payload.
// Endpoint можно не указывать, тогда он выбирается по типу запроса.
type Request struct {
	Topic    string
	Guided   *GuidedPayload
	Endpoint string
}

// TopicRequest создаёт запрос по свободной теме.
func TopicRequest(topic string) Request {
	return Request{Topic: topic}
}

// GuidedRequest создаёт запрос с пошаговыми параметрами.
func GuidedRequest(p GuidedPayload) Request {
	return Request{Guided: &p}
}

// Body возвращает JSON-тело запроса.
func (r Request) Body() (any, error) {
	if r.Guided != nil {
		return r.Guided, nil
	}
	topic := strings.TrimSpace(r.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	return map[string]string{"topic": topic}, nil
}

// ResolvedEndpoint возвращает эндпоинт отправки.
func (r Request) ResolvedEndpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	if r.Guided != nil {
		return GuidedEndpoint
	}
	return DefaultEndpoint
}
