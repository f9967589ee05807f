package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaClient(OllamaConfig{
		BaseURL:    srv.URL + "/",
		Model:      "flagstone-assistant",
		EmbedModel: "nomic-embed-text",
		CacheSize:  2048,
	}, zap.NewNop())
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	defer s.Close()
	var out []string
	for s.Next() {
		out = append(out, s.Fragment())
	}
	return out
}

func TestGenerateSendsDeterministicOptions(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"response":"ok","done":true}`+"\n")
	})

	stream, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:  "hello",
		Options: DeterministicOptions(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, collect(t, stream))

	assert.Equal(t, "flagstone-assistant", got["model"])
	assert.Equal(t, "hello", got["prompt"])
	assert.Equal(t, true, got["stream"])
	opts := got["options"].(map[string]any)
	assert.Equal(t, 0.0, opts["temperature"])
	assert.Equal(t, 0.001, opts["top_p"])
	assert.Equal(t, 1.0, opts["top_k"])
	assert.Equal(t, 1.5, opts["repeat_penalty"])
	assert.Equal(t, false, opts["cache"])
	assert.Equal(t, 2048.0, opts["cache_size"])
	assert.Len(t, opts["stop"], len(DefaultStopSequences))
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := strings.Join([]string{
			`{"response":"Based on "}`,
			``,
			`not json at all`,
			`{"response":"the docs"}`,
			`{"response":"","done":false}`,
			`{"response":".","done":true}`,
		}, "\n")
		io.WriteString(w, body)
	})

	stream, err := client.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.NoError(t, err)
	fragments := collect(t, stream)

	assert.Equal(t, []string{"Based on ", "the docs", "."}, fragments)
	assert.NoError(t, stream.Err())
	assert.Equal(t, 1, stream.Skipped())
}

func TestStreamSkipsOversizedLine(t *testing.T) {
	body := `{"response":"a"}` + "\n" +
		strings.Repeat("x", 3<<20) + "\n" +
		`{"response":"b"}`
	stream := NewStream(io.NopCloser(strings.NewReader(body)), nil)

	assert.Equal(t, []string{"a", "b"}, collect(t, stream))
	assert.NoError(t, stream.Err())
	assert.Equal(t, 1, stream.Skipped())
}

func TestStreamLastLineWithoutNewline(t *testing.T) {
	stream := NewStream(io.NopCloser(strings.NewReader(`{"response":"one"}`+"\n"+`{"response":"two"}`)), nil)

	assert.Equal(t, []string{"one", "two"}, collect(t, stream))
	assert.NoError(t, stream.Err())
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestStreamReportsTransportError(t *testing.T) {
	body := io.MultiReader(strings.NewReader(`{"response":"partial"}`+"\n"), failingReader{err: errors.New("connection reset")})
	stream := NewStream(io.NopCloser(body), nil)

	assert.Equal(t, []string{"partial"}, collect(t, stream))
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "connection reset")
}

func TestStreamReportsEngineError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":"partial"}`+"\n"+`{"error":"model crashed"}`+"\n"+`{"response":"never"}`)
	})

	stream, err := client.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"partial"}, collect(t, stream))
	assert.True(t, errors.Is(stream.Err(), ErrStreamFailed))
}

func TestGenerateNonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "model not found")
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		io.WriteString(w, `{"models":[{"name":"flagstone-assistant:latest"},{"name":"nomic-embed-text"}]}`)
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"flagstone-assistant:latest", "nomic-embed-text"}, models)
}

func TestClearCache(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/show", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.ClearCache(context.Background()))
	assert.Equal(t, map[string]string{"name": "flagstone-assistant", "command": "cache clear"}, got)
}

func TestEmbedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		io.WriteString(w, `{"embeddings":[[1,0],[0,1]]}`)
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	empty, err := client.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"embeddings":[[1,0]]}`)
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}
