package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cuentee/internal/generation"
	"cuentee/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeAPI - очередь задач в памяти.
type fakeAPI struct {
	mu          sync.Mutex
	submitErr   error
	taskID      string
	statuses    []generation.TaskStatus // последний повторяется
	statusErr   error
	blockStatus bool
	blockSubmit bool

	submitCalls int
	statusCalls int
	lastBody    any
	lastToken   string
	lastPath    string
	polled      chan struct{}
	submitting  chan struct{}
}

func newFakeAPI(statuses ...generation.TaskStatus) *fakeAPI {
	return &fakeAPI{taskID: "task-123", statuses: statuses, polled: make(chan struct{}, 1000), submitting: make(chan struct{}, 10)}
}

func (f *fakeAPI) Submit(ctx context.Context, endpoint string, body any, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastBody = body
	f.lastToken = token
	f.lastPath = endpoint
	select {
	case f.submitting <- struct{}{}:
	default:
	}
	if f.blockSubmit {
		// как HTTP клиент: запрос прерывается отменой контекста
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return "", ctx.Err()
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.taskID, nil
}

func (f *fakeAPI) GetTaskStatus(ctx context.Context, taskID, token string) (*generation.TaskStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	n := f.statusCalls
	block := f.blockStatus
	f.mu.Unlock()
	f.polled <- struct{}{}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	idx := n - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	st := f.statuses[idx]
	return &st, nil
}

func (f *fakeAPI) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls
}

func newTestSession(t *testing.T, api generation.TaskAPI, opts ...generation.Option) *generation.Session {
	t.Helper()
	opts = append([]generation.Option{
		generation.WithPollInterval(time.Millisecond),
		generation.WithLogger(zaptest.NewLogger(t)),
		generation.WithMetrics(generation.NewMetrics(prometheus.NewRegistry())),
	}, opts...)
	return generation.NewSession(api, opts...)
}

func collect(t *testing.T, updates <-chan generation.Update) []generation.Update {
	t.Helper()
	var out []generation.Update
	timeout := time.After(10 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("timed out waiting for updates")
			return out
		}
	}
}

func statuses(updates []generation.Update) []models.GenerationStatus {
	out := make([]models.GenerationStatus, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.Status)
	}
	return out
}

func strPtr(s string) *string { return &s }

const chaptersResult = `{"title":"Luna","chapters":[{"title":"One","content":"Once upon a time"}]}`

func TestSession_CompletesWithExactResult(t *testing.T) {
	api := newFakeAPI(
		generation.TaskStatus{Status: generation.TaskStatusPending},
		generation.TaskStatus{Status: generation.TaskStatusStarted},
		generation.TaskStatus{Status: generation.TaskStatusSuccess, Result: json.RawMessage(chaptersResult)},
	)
	s := newTestSession(t, api)

	updates, err := s.Generate(context.Background(), generation.TopicRequest("  dragons  "), "tok")
	require.NoError(t, err)
	got := collect(t, updates)

	assert.Equal(t, []models.GenerationStatus{
		models.GenerationStatusQueued,
		models.GenerationStatusProcessing,
		models.GenerationStatusCompleted,
	}, statuses(got))
	assert.JSONEq(t, chaptersResult, string(got[2].Result))
	assert.Equal(t, "task-123", got[2].TaskID)

	// после терминального статуса запросов больше нет
	time.Sleep(20 * time.Millisecond)
	submits, polls := api.calls()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 3, polls)

	assert.Equal(t, map[string]string{"topic": "dragons"}, api.lastBody)
	assert.Equal(t, "tok", api.lastToken)
	assert.Equal(t, generation.DefaultEndpoint, api.lastPath)

	st := s.State()
	assert.Equal(t, models.GenerationStatusCompleted, st.Status)
	assert.False(t, s.IsGenerating())
}

func TestSession_SuccessWithoutResultYieldsEmptyObject(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess})
	s := newTestSession(t, api)

	result, err := s.Run(context.Background(), generation.TopicRequest("cats"), "tok", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result))
}

func TestSession_InsufficientCreditsNeverPolls(t *testing.T) {
	api := newFakeAPI()
	api.submitErr = generation.ErrInsufficientCredits
	s := newTestSession(t, api)

	updates, err := s.Generate(context.Background(), generation.TopicRequest("cats"), "tok")
	require.NoError(t, err)
	got := collect(t, updates)

	require.Equal(t, []models.GenerationStatus{models.GenerationStatusQueued, models.GenerationStatusFailed}, statuses(got))
	assert.ErrorIs(t, got[1].Err, generation.ErrInsufficientCredits)
	assert.Equal(t, "No credits available. Please subscribe to continue generating stories.", got[1].Message())

	_, polls := api.calls()
	assert.Zero(t, polls)
}

func TestSession_TimesOutAfterMaxPolls(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusPending})
	s := newTestSession(t, api)

	_, err := s.Run(context.Background(), generation.TopicRequest("slow"), "tok", nil)
	require.ErrorIs(t, err, generation.ErrTimeout)
	assert.Equal(t, "Task took too long to complete", generation.UserMessage(err))

	_, polls := api.calls()
	assert.Equal(t, generation.DefaultMaxPolls, polls)
	assert.Equal(t, models.GenerationStatusFailed, s.State().Status)
}

func TestSession_ResetStopsPollingAndSuppressesResult(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusPending})
	api.blockStatus = true
	s := newTestSession(t, api)

	updates, err := s.Generate(context.Background(), generation.TopicRequest("owls"), "tok")
	require.NoError(t, err)

	select {
	case <-api.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("polling never started")
	}

	s.Reset()
	got := collect(t, updates)
	assert.Equal(t, []models.GenerationStatus{models.GenerationStatusQueued}, statuses(got))

	_, pollsAtReset := api.calls()
	time.Sleep(20 * time.Millisecond)
	_, pollsLater := api.calls()
	assert.Equal(t, pollsAtReset, pollsLater)

	st := s.State()
	assert.Equal(t, models.GenerationStatusIdle, st.Status)
	assert.Nil(t, st.Result)
	assert.NoError(t, st.Err)
	assert.False(t, s.IsGenerating())
}

func TestSession_ResetDuringSubmit(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess})
	api.blockSubmit = true
	s := newTestSession(t, api)

	updates, err := s.Generate(context.Background(), generation.TopicRequest("owls"), "tok")
	require.NoError(t, err)
	<-api.submitting

	s.Reset()
	got := collect(t, updates)
	assert.Equal(t, []models.GenerationStatus{models.GenerationStatusQueued}, statuses(got))

	submits, polls := api.calls()
	assert.Equal(t, 1, submits)
	assert.Zero(t, polls)
	assert.Equal(t, models.GenerationStatusIdle, s.State().Status)
	assert.Empty(t, s.State().TaskID)
	assert.False(t, s.IsGenerating())
}

func TestSession_ParentCancelDuringSubmit(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess})
	api.blockSubmit = true
	s := newTestSession(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := s.Generate(ctx, generation.TopicRequest("owls"), "tok")
	require.NoError(t, err)
	<-api.submitting
	cancel()

	got := collect(t, updates)
	assert.Equal(t, []models.GenerationStatus{models.GenerationStatusQueued}, statuses(got))
	_, polls := api.calls()
	assert.Zero(t, polls)

	st := s.State()
	assert.Equal(t, models.GenerationStatusIdle, st.Status)
	assert.NoError(t, st.Err)
	assert.False(t, s.IsGenerating())

	// сессию можно использовать снова
	api.mu.Lock()
	api.blockSubmit = false
	api.mu.Unlock()
	updates, err = s.Generate(context.Background(), generation.TopicRequest("owls"), "tok")
	require.NoError(t, err)
	got = collect(t, updates)
	assert.Equal(t, models.GenerationStatusCompleted, got[len(got)-1].Status)
}

func TestSession_ParentContextCancelReturnsToIdle(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusPending})
	api.blockStatus = true
	s := newTestSession(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := s.Generate(ctx, generation.TopicRequest("owls"), "tok")
	require.NoError(t, err)
	<-api.polled
	cancel()

	got := collect(t, updates)
	assert.Len(t, got, 1)
	assert.Equal(t, models.GenerationStatusIdle, s.State().Status)
}

func TestSession_RejectsConcurrentSubmission(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusPending})
	api.blockStatus = true
	s := newTestSession(t, api)

	_, err := s.Generate(context.Background(), generation.TopicRequest("first"), "tok")
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), generation.TopicRequest("second"), "tok")
	assert.ErrorIs(t, err, generation.ErrGenerationInProgress)

	s.Reset()
	submits, _ := api.calls()
	assert.Equal(t, 1, submits)
}

func TestSession_SessionIsReusableAfterCompletion(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess, Result: json.RawMessage(`"legacy"`)})
	s := newTestSession(t, api)

	for i := 0; i < 2; i++ {
		result, err := s.Run(context.Background(), generation.TopicRequest("again"), "tok", nil)
		require.NoError(t, err)
		assert.Equal(t, `"legacy"`, string(result))
	}
}

func TestSession_EmptyTopicRejectedBeforeNetwork(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(t, api)

	_, err := s.Generate(context.Background(), generation.TopicRequest("   "), "tok")
	assert.ErrorIs(t, err, generation.ErrEmptyTopic)

	submits, _ := api.calls()
	assert.Zero(t, submits)
	assert.Equal(t, models.GenerationStatusIdle, s.State().Status)
}

func TestSession_GuidedPayloadUsesGuidedEndpoint(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess, Result: json.RawMessage(`{}`)})
	s := newTestSession(t, api)

	payload := generation.GuidedPayload{AgeGroup: "6-8", Protagonist: "a fox", ScientificTopic: "volcanoes", Mission: "save the village", VisualStyle: "watercolor"}
	_, err := s.Run(context.Background(), generation.GuidedRequest(payload), "tok", nil)
	require.NoError(t, err)

	assert.Equal(t, generation.GuidedEndpoint, api.lastPath)
	assert.Equal(t, &payload, api.lastBody)
}

func TestSession_FailureStatus(t *testing.T) {
	tests := []struct {
		name    string
		errText *string
		want    string
	}{
		{name: "with message", errText: strPtr("model overloaded"), want: "model overloaded"},
		{name: "without message", errText: nil, want: generation.DefaultTaskFailureMessage},
		{name: "empty message", errText: strPtr(""), want: generation.DefaultTaskFailureMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusFailure, Error: tt.errText})
			s := newTestSession(t, api)

			_, err := s.Run(context.Background(), generation.TopicRequest("x"), "tok", nil)
			var failed *generation.TaskFailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, tt.want, generation.UserMessage(err))
		})
	}
}

func TestSession_UnknownStatusKeepsPolling(t *testing.T) {
	api := newFakeAPI(
		generation.TaskStatus{Status: "RETRY"},
		generation.TaskStatus{Status: "RECEIVED"},
		generation.TaskStatus{Status: generation.TaskStatusSuccess, Result: json.RawMessage(`{"title":"t"}`)},
	)
	s := newTestSession(t, api)

	var seen []models.GenerationStatus
	result, err := s.Run(context.Background(), generation.TopicRequest("x"), "tok", func(u generation.Update) {
		seen = append(seen, u.Status)
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"t"}`, string(result))
	// неизвестные статусы не переводят задачу в processing
	assert.Equal(t, []models.GenerationStatus{models.GenerationStatusQueued, models.GenerationStatusCompleted}, seen)
	_, polls := api.calls()
	assert.Equal(t, 3, polls)
}

func TestSession_StatusEndpointErrorIsTerminal(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusPending})
	api.statusErr = &generation.APIError{Op: generation.OpStatus, StatusCode: 404, Status: "Not Found"}
	s := newTestSession(t, api)

	_, err := s.Run(context.Background(), generation.TopicRequest("x"), "tok", nil)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch task status: Not Found", generation.UserMessage(err))
	_, polls := api.calls()
	assert.Equal(t, 1, polls)
}

func TestSession_FirstPollWaitsOneInterval(t *testing.T) {
	api := newFakeAPI(generation.TaskStatus{Status: generation.TaskStatusSuccess})
	s := newTestSession(t, api, generation.WithPollInterval(50*time.Millisecond))

	start := time.Now()
	_, err := s.Run(context.Background(), generation.TopicRequest("x"), "tok", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{generation.ErrAuthenticationRequired, "Authentication failed. Please log in again."},
		{generation.ErrInsufficientCredits, "No credits available. Please subscribe to continue generating stories."},
		{&generation.APIError{Op: generation.OpSubmit, StatusCode: 500, Status: "Internal Server Error"}, "API Error: 500 - Internal Server Error"},
		{generation.ErrMissingTaskID, "No task_id received from API"},
		{generation.ErrTimeout, "Task took too long to complete"},
		{errors.New("boom"), "boom"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generation.UserMessage(tt.err))
	}
}
