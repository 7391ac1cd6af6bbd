package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MailpitClient reads the inbox of a Mailpit container over its REST API.
type MailpitClient struct {
	baseURL    string
	httpClient *http.Client
}

// MailpitMessage is a message summary, with bodies filled in by Message.
type MailpitMessage struct {
	ID      string           `json:"ID"`
	From    MailpitAddress   `json:"From"`
	To      []MailpitAddress `json:"To"`
	Subject string           `json:"Subject"`
	Text    string           `json:"Text"`
	HTML    string           `json:"HTML"`
}

// MailpitAddress is a mailbox in a message header.
type MailpitAddress struct {
	Address string `json:"Address"`
	Name    string `json:"Name"`
}

type messagesResponse struct {
	Messages []MailpitMessage `json:"messages"`
	Total    int              `json:"messages_count"`
}

// Client returns an API client for the container.
func (c *MailpitContainer) Client() *MailpitClient {
	return &MailpitClient{
		baseURL:    fmt.Sprintf("http://%s:%d/api/v1", c.APIHost, c.APIPort),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchByRecipient lists messages addressed to email, newest first.
func (c *MailpitClient) SearchByRecipient(ctx context.Context, email string) ([]MailpitMessage, error) {
	var result messagesResponse
	if err := c.get(ctx, "/search?query="+url.QueryEscape("to:"+email), &result); err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return result.Messages, nil
}

// Message returns a single message with its bodies.
func (c *MailpitClient) Message(ctx context.Context, id string) (*MailpitMessage, error) {
	var msg MailpitMessage
	if err := c.get(ctx, "/message/"+url.PathEscape(id), &msg); err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

// WaitForMessage polls until a message for email arrives and returns it in
// full.
func (c *MailpitClient) WaitForMessage(ctx context.Context, email string, timeout time.Duration) (*MailpitMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		messages, err := c.SearchByRecipient(ctx, email)
		if err == nil && len(messages) > 0 {
			return c.Message(ctx, messages[0].ID)
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("timeout waiting for mail to %s: %w", email, lastErr)
			}
			return nil, fmt.Errorf("timeout waiting for mail to %s", email)
		case <-ticker.C:
		}
	}
}

func (c *MailpitClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
