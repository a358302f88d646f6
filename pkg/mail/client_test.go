package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartwell/studioline-backend/pkg/config"
	"github.com/mhartwell/studioline-backend/pkg/errors"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.MailConfig{
		APIKey:      "SG.test-key",
		BaseURL:     baseURL,
		DefaultFrom: "studio@example.com",
		SendTimeout: 2 * time.Second,
		MaxRetries:  0,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestSendPostsSendgridPayload(t *testing.T) {
	var captured sendgridPayload
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, sendPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Send(context.Background(), Message{
		To:       "client@example.com",
		Subject:  "August update",
		HTMLBody: "<p>hello</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.test-key", authHeader)
	assert.Equal(t, "studio@example.com", captured.From.Email)
	require.Len(t, captured.Personalizations, 1)
	require.Len(t, captured.Personalizations[0].To, 1)
	assert.Equal(t, "client@example.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "August update", captured.Subject)
}

func TestSendSurfacesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Send(context.Background(), Message{To: "client@example.com"})
	require.Error(t, err)

	typed := errors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, errors.CodeDependency, typed.Code())
}

func TestSendRequiresRecipient(t *testing.T) {
	client := newTestClient(t, "http://localhost")
	err := client.Send(context.Background(), Message{})
	require.Error(t, err)

	typed := errors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, errors.CodeValidation, typed.Code())
}
