package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vschool/agentsync/internal/models"
	"go.uber.org/zap"
)

func TestSubmitSendersPostsPayload(t *testing.T) {
	var got submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/marketing/chat/message-sender", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"updated":3}`))
	}))
	defer server.Close()

	id := "m1"
	client := NewClient(server.URL, server.Client(), zap.NewNop())
	result, err := client.SubmitSenders(context.Background(), "t_42", []models.SenderTuple{
		{Name: "Nueng", MessageID: &id},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, "t_42", got.ConversationID)
	require.Len(t, got.Senders, 1)
	assert.Equal(t, "Nueng", got.Senders[0].Name)
}

func TestNonTwoHundredIsFailureNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), zap.NewNop())
	result, err := client.SubmitSenders(context.Background(), "t_42", nil)

	require.NoError(t, err)
	assert.False(t, result.Success, "non-2xx collapses to success=false regardless of body")
}

func TestMalformedJSONIsFailureNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), zap.NewNop())
	result, err := client.SubmitSenders(context.Background(), "t_42", nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestTransportErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(server.URL, nil, zap.NewNop())
	_, err := client.SubmitSenders(context.Background(), "t_42", nil)
	assert.Error(t, err)
}
