// Package facilitator talks to the AI facilitator backend: it sends user
// messages, consumes the chunked multi-persona response stream, and reduces
// that stream to committed conversation-log entries.
package facilitator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bmad-method/orchestrator/domain"
)

// Client is the facilitator backend client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new facilitator client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EventMetadata carries the per-event metadata of the wire contract.
type EventMetadata struct {
	Speaker       string          `json:"speaker,omitempty"`
	HandoffReason string          `json:"handoffReason,omitempty"`
	BoardState    json.RawMessage `json:"boardState,omitempty"`
}

// AdditionalData is the trailing payload of a complete event.
type AdditionalData struct {
	BoardState json.RawMessage `json:"boardState,omitempty"`
}

// StreamEvent is one wire-level event of the facilitator stream. Transient:
// events are consumed by the demultiplexer, never persisted.
type StreamEvent struct {
	Type           domain.StreamEventType `json:"type"`
	Content        string                 `json:"content,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Metadata       *EventMetadata         `json:"metadata,omitempty"`
	LimitStatus    json.RawMessage        `json:"limitStatus,omitempty"`
	AdditionalData *AdditionalData        `json:"additionalData,omitempty"`
}

// MessageRequest is the request for a facilitated message exchange.
type MessageRequest struct {
	SessionID    string                    `json:"session_id"`
	Pathway      domain.Pathway            `json:"pathway"`
	CurrentPhase string                    `json:"current_phase"`
	Content      string                    `json:"content"`
	History      []domain.CommittedMessage `json:"history,omitempty"`
}

// StreamCallback is called for each parsed event in the stream.
type StreamCallback func(ev *StreamEvent) error

// StreamMessage sends a message and reads the chunked response stream,
// invoking the callback per event. Chunks are processed as they arrive, a
// malformed line is skipped rather than aborting the stream, and the `[DONE]`
// sentinel is a clean end even without a complete event. Cancelling ctx
// releases the underlying connection.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest, callback StreamCallback) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &domain.StreamError{Code: "transport", Message: "request failed", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &domain.StreamError{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   strings.TrimSpace(string(respBody)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &domain.StreamError{Code: "transport", Message: "failed to read stream", Retryable: true, Err: err}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Malformed chunk: skip and continue, never abort the stream.
			continue
		}

		if err := callback(&ev); err != nil {
			return err
		}
		if ev.Type == domain.StreamEventComplete {
			return nil
		}
	}
}

// AnalyzeIntent asks the backend to map free text to a pathway
// recommendation. The result is treated as opaque input by the switch
// engine.
func (c *Client) AnalyzeIntent(ctx context.Context, text string) (*domain.PathwayRecommendation, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/intent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intent API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var rec domain.PathwayRecommendation
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &rec, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
