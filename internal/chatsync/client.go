// Package chatsync is the client side of the chat: an HTTP client for the
// chat and auth resources and a polling Syncer that mirrors one channel.
package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"alquimist/internal/adapters/httpapi"
	"alquimist/internal/chat"
	"alquimist/pkg/domain"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client calls the JSON API. After Login, requests carry the signed-in user
// in the actor headers.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	actor *domain.UserProfile
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient targets the server at baseURL, e.g. http://localhost:3000.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Data  json.RawMessage `json:"data"`
	User  json.RawMessage `json:"user"`
	Error string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.actor != nil {
		req.Header.Set(httpapi.HeaderUserID, c.actor.ID)
		req.Header.Set(httpapi.HeaderUserName, c.actor.Name)
		req.Header.Set(httpapi.HeaderUserRole, c.actor.Role)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return response{}, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &APIError{Status: resp.StatusCode, Message: out.Error}
	}
	return out, nil
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

// Login authenticates and remembers the profile as the acting user.
func (c *Client) Login(ctx context.Context, email, password string) (domain.UserProfile, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth", map[string]string{"email": email, "password": password})
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile, err := decodeInto[domain.UserProfile](resp.User)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	c.mu.Lock()
	c.actor = &profile
	c.mu.Unlock()
	return profile, nil
}

// Logout tells the server the user left and forgets the acting user.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	actor := c.actor
	c.actor = nil
	c.mu.Unlock()
	path := "/api/auth"
	if actor != nil {
		path += "?userId=" + url.QueryEscape(actor.ID)
	}
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Channels lists every channel.
func (c *Client) Channels(ctx context.Context) ([]domain.ChatChannel, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chat?type=channels", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]domain.ChatChannel](resp.Data)
}

// Users lists the chat roster.
func (c *Client) Users(ctx context.Context) ([]domain.ChatUser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chat?type=users", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]domain.ChatUser](resp.Data)
}

// Messages lists one channel's messages.
func (c *Client) Messages(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chat?channelId="+url.QueryEscape(channelID), nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]domain.ChatMessage](resp.Data)
}

// Send posts a message and returns the stored record.
func (c *Client) Send(ctx context.Context, in chat.MessageInput) (domain.ChatMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", in)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return decodeInto[domain.ChatMessage](resp.Data)
}
