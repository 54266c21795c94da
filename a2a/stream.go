package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// StreamEvent is one server-sent event from a streaming agent call, decoded
// from the data payload.
type StreamEvent struct {
	Data json.RawMessage
}

// SendStream subscribes to an agent task stream (method tasks/sendSubscribe)
// and invokes handle for each data event. The stream ends when the server
// closes the connection, the context is cancelled, or handle returns an
// error. No retries are performed.
func (c *Client) SendStream(ctx context.Context, endpoint, query, apiKey, sessionID string, handle func(StreamEvent) error) error {
	if sessionID == "" {
		sessionID = "default-session"
	}
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tasks/sendSubscribe",
		"params": map[string]any{
			"id": sessionID,
			"message": map[string]any{
				"role":  "user",
				"parts": []Part{{Kind: "text", Text: query}},
			},
		},
	})
	if err != nil {
		return &Error{Kind: ErrKindProtocolError, Message: "marshal request: " + err.Error(), Wrapped: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: ErrKindProtocolError, Message: "build request: " + err.Error(), Wrapped: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", authHeader(apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Kind: ErrKindHTTPError, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if err := handle(StreamEvent{Data: json.RawMessage(data)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return classifyTransportError(err)
	}
	return nil
}
