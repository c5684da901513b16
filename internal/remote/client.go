// Package remote talks to a habitkit server over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/habitkit/internal/api"
	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/models"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx response the client could not map to a domain error.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
}

// Client implements syncer.Remote against the habitkit HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy, so a
// client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		token:      token,
		httpClient: &http.Client{Timeout: constants.DefaultRemoteTimeout * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	var resources []api.HabitResource
	if err := c.do(ctx, http.MethodGet, "/habits", nil, &resources); err != nil {
		return models.Snapshot{}, err
	}
	return api.ToSnapshot(resources), nil
}

func (c *Client) CreateHabit(ctx context.Context, h models.Habit) error {
	return c.do(ctx, http.MethodPost, "/habits", h, nil)
}

func (c *Client) UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) error {
	return c.do(ctx, http.MethodPut, "/habits/"+url.PathEscape(id), patch, nil)
}

// CreateCompletion always sets the completion rather than toggling it, so a
// retried call cannot undo itself.
func (c *Client) CreateCompletion(ctx context.Context, dc models.DatedCompletion) error {
	completed := true
	at := dc.CompletedAt
	req := api.CompletionRequest{Date: dc.DayKey, CompletedAt: &at, Completed: &completed}
	err := c.do(ctx, http.MethodPost, "/habits/"+url.PathEscape(dc.HabitID)+"/completions", req, nil)
	var fde *apperrors.FutureDateError
	if errors.As(err, &fde) {
		fde.DayKey = dc.DayKey
	}
	return err
}

// Merge asks the server to merge local in one request.
func (c *Client) Merge(ctx context.Context, local models.Snapshot) (api.SyncResponse, error) {
	var resp api.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/habits/sync", local, &resp); err != nil {
		return api.SyncResponse{}, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response, path string) error {
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err != nil {
		body.Error = strings.TrimSpace(string(data))
	}

	switch body.Code {
	case api.CodeFutureDate:
		return &apperrors.FutureDateError{}
	case api.CodeNotFound:
		if id := habitIDFromPath(path); id != "" {
			return apperrors.NotFound("habit", id)
		}
		return &apperrors.NotFoundError{Kind: "resource", ID: path}
	}
	return &APIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Error}
}

// habitIDFromPath returns the id segment of /habits/{id}[/...], or "".
func habitIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/habits/")
	if !ok {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" || seg == "sync" {
		return ""
	}
	id, err := url.PathUnescape(seg)
	if err != nil {
		return seg
	}
	return id
}
