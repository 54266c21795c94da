// Package a2a implements a client for agent endpoints speaking the A2A
// protocol: JSON-RPC 2.0 over HTTP with a message/send method carrying
// typed text parts.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrKind classifies a failed agent call.
type ErrKind string

const (
	ErrKindTimeout           ErrKind = "timeout"
	ErrKindConnectFailure    ErrKind = "connect_failure"
	ErrKindHTTPError         ErrKind = "http_error"
	ErrKindProtocolError     ErrKind = "protocol_error"
	ErrKindNoExtractableText ErrKind = "no_extractable_text"
)

// Error is a classified transport or protocol failure from an agent call.
type Error struct {
	Kind       ErrKind
	StatusCode int
	Message    string
	Wrapped    error
}

func (e *Error) Error() string {
	if e.Kind == ErrKindHTTPError {
		return fmt.Sprintf("a2a: http error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("a2a: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Options configure an agent client.
type Options struct {
	// Timeout bounds the whole request. Defaults to 60s.
	Timeout time.Duration

	// ConnectTimeout bounds connection establishment. Defaults to 10s.
	ConnectTimeout time.Duration

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client sends queries to A2A agent endpoints. It performs no retries;
// callers that want a fallback policy layer it on top.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an agent client. The connect timeout is enforced by the
// transport's dialer so that an unreachable host fails fast instead of
// consuming the whole request budget.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: opts.ConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: opts.ConnectTimeout,
			},
		}
	}
	return &Client{httpClient: httpClient, logger: opts.Logger}
}

// rpcRequest is the JSON-RPC 2.0 envelope for message/send.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Message rpcMessage `json:"message"`
}

type rpcMessage struct {
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"messageId"`
}

// Part is one typed segment of an agent message.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// newEnvelope builds a message/send request for a query.
func newEnvelope(query string) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "message/send",
		Params: rpcParams{
			Message: rpcMessage{
				Role:      "user",
				Parts:     []Part{{Kind: "text", Text: query}},
				MessageID: uuid.NewString(),
			},
		},
	}
}

// authHeader builds the Authorization header value for a credential. Keys
// already carrying an ApiKey or Bearer scheme pass through unchanged; bare
// keys get the ApiKey scheme.
func authHeader(apiKey string) string {
	if strings.HasPrefix(apiKey, "ApiKey ") || strings.HasPrefix(apiKey, "Bearer ") {
		return apiKey
	}
	return "ApiKey " + apiKey
}

// Send posts the query to an agent endpoint and extracts the response text.
// All failures are returned as *Error with a classified kind.
func (c *Client) Send(ctx context.Context, endpoint, query, apiKey string) (string, error) {
	payload, err := json.Marshal(newEnvelope(query))
	if err != nil {
		return "", &Error{Kind: ErrKindProtocolError, Message: "marshal request: " + err.Error(), Wrapped: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: ErrKindProtocolError, Message: "build request: " + err.Error(), Wrapped: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", authHeader(apiKey))
	}

	c.logger.Info("calling agent", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	c.logger.Info("agent response", "endpoint", endpoint, "status", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrKindProtocolError, Message: "read response: " + err.Error(), Wrapped: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Kind:       ErrKindHTTPError,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 200),
		}
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", &Error{Kind: ErrKindProtocolError, Message: "decode response: " + err.Error(), Wrapped: err}
	}
	if envelope.Error != nil {
		return "", &Error{
			Kind:    ErrKindProtocolError,
			Message: fmt.Sprintf("json-rpc error (code %d): %s", envelope.Error.Code, envelope.Error.Message),
		}
	}
	if len(envelope.Result) == 0 {
		return "", &Error{Kind: ErrKindProtocolError, Message: "no result field in response"}
	}

	text, ok := ExtractText(envelope.Result)
	if !ok {
		return "", &Error{Kind: ErrKindNoExtractableText, Message: "could not extract text from result"}
	}
	return text, nil
}

// classifyTransportError separates timeouts from connection failures. Dial
// errors are checked first: a dial timeout satisfies net.Error.Timeout()
// too, but it means the connection was never established, which is a
// connect failure rather than a request timeout.
func classifyTransportError(err error) *Error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &Error{Kind: ErrKindConnectFailure, Message: err.Error(), Wrapped: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrKindTimeout, Message: err.Error(), Wrapped: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrKindTimeout, Message: err.Error(), Wrapped: err}
	}
	if errors.As(err, &opErr) {
		return &Error{Kind: ErrKindConnectFailure, Message: err.Error(), Wrapped: err}
	}
	var syscallErr *os.SyscallError
	if errors.As(err, &syscallErr) {
		return &Error{Kind: ErrKindConnectFailure, Message: err.Error(), Wrapped: err}
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "no such host") {
		return &Error{Kind: ErrKindConnectFailure, Message: err.Error(), Wrapped: err}
	}
	return &Error{Kind: ErrKindConnectFailure, Message: err.Error(), Wrapped: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
