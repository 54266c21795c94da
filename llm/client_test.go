package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	})
	return string(body)
}

func TestNewAzureOpenAI(t *testing.T) {
	t.Run("requires endpoint, key, and deployment", func(t *testing.T) {
		_, err := NewAzureOpenAI(AzureOpenAIConfig{APIKey: "k", Deployment: "d"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "endpoint")

		_, err = NewAzureOpenAI(AzureOpenAIConfig{Endpoint: "https://x.openai.azure.com", Deployment: "d"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "api key")

		_, err = NewAzureOpenAI(AzureOpenAIConfig{Endpoint: "https://x.openai.azure.com", APIKey: "k"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "deployment")
	})

	t.Run("valid config succeeds", func(t *testing.T) {
		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint:   "https://x.openai.azure.com/",
			APIKey:     "k",
			Deployment: "gpt-4o",
		})
		require.NoError(t, err)
		require.NotNil(t, client)
	})
}

func TestAzureOpenAIComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("posts messages and returns first choice", func(t *testing.T) {
		var gotPath, gotKey string
		var gotBody chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path + "?" + r.URL.RawQuery
			gotKey = r.Header.Get("api-key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(completionResponse("  routed answer  ")))
		}))
		defer server.Close()

		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint:   server.URL,
			APIKey:     "secret",
			Deployment: "gpt-4o",
			APIVersion: "2024-08-01-preview",
		})
		require.NoError(t, err)

		content, err := client.Complete(ctx, "system instruction", "user question")
		require.NoError(t, err)
		require.Equal(t, "routed answer", content, "response is trimmed")

		require.Equal(t, "/openai/deployments/gpt-4o/chat/completions?api-version=2024-08-01-preview", gotPath)
		require.Equal(t, "secret", gotKey)
		require.Equal(t, []chatMessage{
			{Role: "system", Content: "system instruction"},
			{Role: "user", Content: "user question"},
		}, gotBody.Messages)
		require.Equal(t, defaultMaxTokens, gotBody.MaxTokens)
	})

	t.Run("empty system instruction is omitted", func(t *testing.T) {
		var gotBody chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(completionResponse("ok")))
		}))
		defer server.Close()

		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: server.URL, APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)

		_, err = client.Complete(ctx, "", "just the user message")
		require.NoError(t, err)
		require.Equal(t, []chatMessage{{Role: "user", Content: "just the user message"}}, gotBody.Messages)
	})

	t.Run("api-key header is used for regular endpoints", func(t *testing.T) {
		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: "https://myresource.openai.azure.com", APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)
		require.False(t, client.useBearer)
	})

	t.Run("bearer auth is used for cognitiveservices endpoints", func(t *testing.T) {
		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: "https://myresource.cognitiveservices.azure.com", APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)
		require.True(t, client.useBearer)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: server.URL, APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)

		_, err = client.Complete(ctx, "s", "u")
		require.Error(t, err)
		require.Contains(t, err.Error(), "429")
	})

	t.Run("embedded error payload is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"code": "content_filter", "message": "blocked"}}`))
		}))
		defer server.Close()

		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: server.URL, APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)

		_, err = client.Complete(ctx, "s", "u")
		require.Error(t, err)
		require.Contains(t, err.Error(), "content_filter")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		client, err := NewAzureOpenAI(AzureOpenAIConfig{
			Endpoint: server.URL, APIKey: "k", Deployment: "d",
		})
		require.NoError(t, err)

		_, err = client.Complete(ctx, "s", "u")
		require.Error(t, err)
		require.Contains(t, err.Error(), "no choices")
	})
}
