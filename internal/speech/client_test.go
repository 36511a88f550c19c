package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "test-key", DefaultConfig, 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestRecognize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1p1beta1/speech:recognize", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req recognizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gs://speech/audio/x.flac", req.Audio.URI)
		assert.Equal(t, DefaultConfig, req.Config)

		_, _ = w.Write([]byte(`{"results":[
			{"alternatives":[{"transcript":"hello there","confidence":0.9},{"transcript":"hello their"}]},
			{"alternatives":[]},
			{"alternatives":[{"transcript":"general kenobi"}]}
		]}`))
	})

	text, err := c.Recognize(context.Background(), "gs://speech/audio/x.flac")
	require.NoError(t, err)
	assert.Equal(t, "hello there\ngeneral kenobi", text)
}

func TestRecognizeNoResults(t *testing.T) {
	for _, body := range []string{`{}`, `{"results":[]}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		text, err := c.Recognize(context.Background(), "gs://b/k")
		require.NoError(t, err, body)
		assert.Equal(t, "", text)
	}
}

func TestRecognizeAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	})

	_, err := c.Recognize(context.Background(), "gs://b/k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestRecognizePlainError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.Recognize(context.Background(), "gs://b/k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "", DefaultConfig, time.Second)
	assert.Error(t, err)

	c, err := NewClient("", "k", DefaultConfig, time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
}
