package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ananse-ntentan/backend/pkg/logger"
)

// chatServer captures the decoded request and answers with one text
// candidate carrying a fresh thought signature.
func chatServer(t *testing.T, captured *generateRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []candidate{{
				Content:          content{Parts: []part{{Text: "The spider waited."}}},
				ThoughtSignature: "sig-next",
			}},
		})
	}))
}

func testChatClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: baseURL,
	}, logger.New(logger.Config{Level: "error", Output: io.Discard}))
}

func TestGenerateChatCarriesPriorSignature(t *testing.T) {
	var got generateRequest
	srv := chatServer(t, &got)
	defer srv.Close()

	text, sig, err := testChatClient(srv.URL).GenerateChat(context.Background(), "continue the tale", "sig-prev", ThinkingHigh)
	require.NoError(t, err)
	assert.Equal(t, "The spider waited.", text)
	assert.Equal(t, "sig-next", sig)

	// The prior signature rides in as a model turn before the prompt.
	require.Len(t, got.Contents, 2)
	assert.Equal(t, "model", got.Contents[0].Role)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "sig-prev", got.Contents[0].Parts[0].ThoughtSignature)
	assert.Equal(t, "user", got.Contents[1].Role)
	require.Len(t, got.Contents[1].Parts, 1)
	assert.Equal(t, "continue the tale", got.Contents[1].Parts[0].Text)
}

func TestGenerateChatWithoutSignatureSendsSingleTurn(t *testing.T) {
	var got generateRequest
	srv := chatServer(t, &got)
	defer srv.Close()

	_, _, err := testChatClient(srv.URL).GenerateChat(context.Background(), "begin", "", ThinkingHigh)
	require.NoError(t, err)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
}
