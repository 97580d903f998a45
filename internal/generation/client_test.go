package generation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cuentee/internal/generation"
	"cuentee/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.Handler) *generation.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := generation.NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := generation.NewClient("not a url", time.Second, nil)
	assert.Error(t, err)
}

func TestClient_SubmitSendsBearerAndBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, generation.DefaultEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "space whales", body["topic"])

		_, _ = w.Write([]byte(`{"task_id":"abc"}`))
	}))

	taskID, err := c.Submit(context.Background(), generation.DefaultEndpoint, map[string]string{"topic": "space whales"}, "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", taskID)
}

func TestClient_SubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantMsg string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantIs: generation.ErrAuthenticationRequired, wantMsg: "Authentication failed. Please log in again."},
		{name: "payment required", status: http.StatusPaymentRequired, wantIs: generation.ErrInsufficientCredits, wantMsg: "No credits available. Please subscribe to continue generating stories."},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", wantMsg: "API Error: 502 - Bad Gateway"},
		{name: "missing task id", status: http.StatusOK, body: `{}`, wantIs: generation.ErrMissingTaskID, wantMsg: "No task_id received from API"},
		{name: "malformed body", status: http.StatusOK, body: `nope`, wantIs: generation.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.Submit(context.Background(), generation.DefaultEndpoint, map[string]string{"topic": "x"}, "tok")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, generation.UserMessage(err))
			}
		})
	}
}

func TestClient_SubmitAPIErrorKeepsBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad topic", http.StatusBadRequest)
	}))

	_, err := c.Submit(context.Background(), generation.DefaultEndpoint, map[string]string{"topic": "x"}, "tok")
	var apiErr *generation.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Bad Request", apiErr.Status)
	assert.Contains(t, apiErr.Body, "bad topic")
}

func TestClient_GetTaskStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/t-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"task_id":"t-1","status":"FAILURE","result":null,"error":"boom"}`))
	}))

	st, err := c.GetTaskStatus(context.Background(), "t-1", "tok")
	require.NoError(t, err)
	assert.Equal(t, generation.TaskStatusFailure, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, "boom", *st.Error)
}

func TestClient_GetTaskStatusNonOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetTaskStatus(context.Background(), "missing", "tok")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch task status: Not Found", generation.UserMessage(err))
}

// Полный цикл через HTTP: отправка, два PENDING, SUCCESS.
func TestSessionWithHTTPClient_EndToEnd(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /stories/generate-story-async", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"e2e"}`))
	})
	mux.HandleFunc("GET /tasks/e2e", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"PENDING"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"SUCCESS","result":` + chaptersResult + `}`))
	})
	c := newTestClient(t, mux)
	s := newTestSession(t, c)

	var seen []models.GenerationStatus
	result, err := s.Run(context.Background(), generation.TopicRequest("whales"), "tok", func(u generation.Update) {
		seen = append(seen, u.Status)
	})
	require.NoError(t, err)
	assert.JSONEq(t, chaptersResult, string(result))
	assert.Equal(t, []models.GenerationStatus{
		models.GenerationStatusQueued,
		models.GenerationStatusProcessing,
		models.GenerationStatusCompleted,
	}, seen)
	assert.Equal(t, int32(3), polls.Load())
}
