package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resultResponse(t *testing.T, result any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      "1",
		"result":  result,
	})
	require.NoError(t, err)
	return body
}

func TestClientSend(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a message/send envelope and extracts parts", func(t *testing.T) {
		var captured rpcRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write(resultResponse(t, map[string]any{
				"parts": []map[string]any{{"kind": "text", "text": "agent answer"}},
			}))
		}))
		defer server.Close()

		client := NewClient(Options{})
		text, err := client.Send(ctx, server.URL, "top scorers", "")
		require.NoError(t, err)
		require.Equal(t, "agent answer", text)

		require.Equal(t, "2.0", captured.JSONRPC)
		require.Equal(t, "message/send", captured.Method)
		require.NotEmpty(t, captured.ID)
		require.Equal(t, "user", captured.Params.Message.Role)
		require.NotEmpty(t, captured.Params.Message.MessageID)
		require.Equal(t, []Part{{Kind: "text", Text: "top scorers"}}, captured.Params.Message.Parts)
	})

	t.Run("bare api key gets the ApiKey scheme", func(t *testing.T) {
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			w.Write(resultResponse(t, "ok"))
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "secret123")
		require.NoError(t, err)
		require.Equal(t, "ApiKey secret123", auth)
	})

	t.Run("prefixed credentials pass through", func(t *testing.T) {
		for _, key := range []string{"Bearer token456", "ApiKey already"} {
			var auth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				w.Write(resultResponse(t, "ok"))
			}))

			client := NewClient(Options{})
			_, err := client.Send(ctx, server.URL, "q", key)
			server.Close()
			require.NoError(t, err)
			require.Equal(t, key, auth)
		}
	})

	t.Run("empty api key sends no authorization header", func(t *testing.T) {
		var hasAuth bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hasAuth = r.Header["Authorization"]
			w.Write(resultResponse(t, "ok"))
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "")
		require.NoError(t, err)
		require.False(t, hasAuth)
	})

	t.Run("http error status is classified", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal failure", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindHTTPError, agentErr.Kind)
		require.Equal(t, http.StatusInternalServerError, agentErr.StatusCode)
	})

	t.Run("json-rpc error is a protocol error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jsonrpc": "2.0", "id": "1", "error": {"code": -32600, "message": "invalid request"}}`))
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindProtocolError, agentErr.Kind)
		require.Contains(t, agentErr.Message, "invalid request")
	})

	t.Run("undecodable body is a protocol error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindProtocolError, agentErr.Kind)
	})

	t.Run("result without text is classified", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(resultResponse(t, map[string]any{"unrelated": 42}))
		}))
		defer server.Close()

		client := NewClient(Options{})
		_, err := client.Send(ctx, server.URL, "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindNoExtractableText, agentErr.Kind)
	})

	t.Run("unreachable endpoint is a connect failure", func(t *testing.T) {
		client := NewClient(Options{Timeout: time.Second, ConnectTimeout: 200 * time.Millisecond})
		_, err := client.Send(ctx, "http://127.0.0.1:1", "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindConnectFailure, agentErr.Kind)
	})

	t.Run("slow agent times out", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
			w.Write(resultResponse(t, "late"))
		}))
		defer server.Close()

		client := NewClient(Options{Timeout: 50 * time.Millisecond})
		_, err := client.Send(ctx, server.URL, "q", "")
		var agentErr *Error
		require.ErrorAs(t, err, &agentErr)
		require.Equal(t, ErrKindTimeout, agentErr.Kind)
	})
}

func TestAuthHeader(t *testing.T) {
	require.Equal(t, "ApiKey abc", authHeader("abc"))
	require.Equal(t, "ApiKey abc", authHeader("ApiKey abc"))
	require.Equal(t, "Bearer abc", authHeader("Bearer abc"))
}

// dialTimeoutError mimics the error the net package produces when a dial
// deadline expires before the connection is established.
type dialTimeoutError struct{}

func (dialTimeoutError) Error() string   { return "i/o timeout" }
func (dialTimeoutError) Timeout() bool   { return true }
func (dialTimeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	t.Run("dial timeout is a connect failure", func(t *testing.T) {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: dialTimeoutError{}}
		classified := classifyTransportError(err)
		require.Equal(t, ErrKindConnectFailure, classified.Kind)
	})

	t.Run("dial refusal is a connect failure", func(t *testing.T) {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		classified := classifyTransportError(err)
		require.Equal(t, ErrKindConnectFailure, classified.Kind)
	})

	t.Run("read timeout on an established connection is a timeout", func(t *testing.T) {
		err := &net.OpError{Op: "read", Net: "tcp", Err: dialTimeoutError{}}
		classified := classifyTransportError(err)
		require.Equal(t, ErrKindTimeout, classified.Kind)
	})

	t.Run("deadline exceeded is a timeout", func(t *testing.T) {
		classified := classifyTransportError(context.DeadlineExceeded)
		require.Equal(t, ErrKindTimeout, classified.Kind)
	})
}
