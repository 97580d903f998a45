package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRemove(t *testing.T) {
	var got removeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/cuentee_images", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", "service-key", time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = c.Remove(context.Background(), "cuentee_images", []string{"u/cover.png", "u/ch1.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u/cover.png", "u/ch1.png"}, got.Prefixes)
}

func TestRemove_NoPathsSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k", time.Second, nil)
	require.NoError(t, err)
	assert.NoError(t, c.Remove(context.Background(), "b", nil))
}

func TestRemove_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "k", time.Second, nil)
	require.NoError(t, err)
	err = c.Remove(context.Background(), "b", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", "k", time.Second, nil)
	assert.Error(t, err)
}
