package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		resp := ChatResponse{
			Choices: []Choice{
				{Message: Message{Role: "assistant", Content: reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatReturnsReplyText(t *testing.T) {
	srv := newTestServer(t, "  hello there  ")
	defer srv.Close()

	client := NewClient(srv.URL, "", "test-model")
	reply, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
}

func TestChatJSONExtractsFencedObject(t *testing.T) {
	srv := newTestServer(t, "Sure, here you go:\n```json\n{\"intent\": \"chat\", \"confidence\": 0.9}\n```")
	defer srv.Close()

	client := NewClient(srv.URL, "", "test-model")
	raw, err := client.ChatJSON(context.Background(), []Message{{Role: "user", Content: "classify"}}, 0.1)
	require.NoError(t, err)

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "chat", parsed.Intent)
	assert.InDelta(t, 0.9, parsed.Confidence, 0.001)
}

func TestChatErrorsWithoutEndpoint(t *testing.T) {
	client := NewClient("", "", "test-model")
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.5)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChatAPIErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "test-model")
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.5)
	assert.ErrorContains(t, err, "status=503")
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "bare object", content: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", content: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "embedded in prose", content: `The answer is {"a":1} as requested.`, want: `{"a":1}`},
		{name: "no object", content: "no json here", wantErr: true},
		{name: "unbalanced", content: `{"a":1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
