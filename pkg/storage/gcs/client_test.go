package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticTokenSource(token string) *tokenSource {
	return &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			return token, time.Now().Add(time.Hour), nil
		},
	}
}

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient:    server.Client(),
		defaultBucket: "studioline-docs",
		tokenSource:   staticTokenSource("test-token"),
		apiBase:       server.URL + "/storage/v1",
		uploadBase:    server.URL + "/upload/storage/v1",
		publicBase:    server.URL,
	}
}

func TestUploadSendsMediaAndReturnsURL(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"invoices/SL-2026-001.html"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	url, err := client.Upload(context.Background(), "invoices/SL-2026-001.html", []byte("<html>doc</html>"), "text/html")
	require.NoError(t, err)

	assert.Equal(t, "/upload/storage/v1/b/studioline-docs/o", gotPath)
	assert.Contains(t, gotQuery, "uploadType=media")
	assert.Contains(t, gotQuery, "name=invoices%2FSL-2026-001.html")
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "text/html", gotContentType)
	assert.Equal(t, "<html>doc</html>", string(gotBody))
	assert.Equal(t, server.URL+"/studioline-docs/invoices/SL-2026-001.html", url)
}

func TestUploadSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Upload(context.Background(), "invoices/doc.html", []byte("x"), "text/html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs upload failed")
}

func TestUploadValidatesInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	client := newTestClient(server)

	_, err := client.Upload(context.Background(), "", []byte("x"), "text/html")
	require.Error(t, err)

	_, err = client.Upload(context.Background(), "key", nil, "text/html")
	require.Error(t, err)
}

func TestPingChecksObjectListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/studioline-docs/o", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	require.NoError(t, client.Ping(context.Background()))
}

func TestTokenSourceCachesUntilExpiry(t *testing.T) {
	calls := 0
	ts := &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			calls++
			return "tok", time.Now().Add(time.Hour), nil
		},
	}

	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	}
	assert.Equal(t, 1, calls)
}
