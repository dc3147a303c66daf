// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/models"
)

// APIError is a non-2xx response. It matches the engine rejection sentinels
// under errors.Is, so callers classify it like a local engine error.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status == 0 {
		return msg
	}
	return fmt.Sprintf("%d %s", e.Status, msg)
}

func (e *APIError) Is(target error) bool {
	return e.Kind != "" && e.Kind != "internal" && engine.Kind(target) == e.Kind
}

// Client talks to one retroboard server as one user.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
	Dialer  *websocket.Dialer

	UserID string
	Token  string
}

// New creates a client for the server at baseURL (http or https).
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		BaseURL: u,
		HTTP:    http.DefaultClient,
		Dialer:  websocket.DefaultDialer,
	}, nil
}

// CreateUser issues a new identity and adopts it.
func (c *Client) CreateUser(ctx context.Context) (models.CreateUserResponse, error) {
	var resp models.CreateUserResponse
	if err := c.do(ctx, http.MethodPost, "users", nil, &resp); err != nil {
		return resp, err
	}
	c.UserID, c.Token = resp.UserID, resp.Token
	return resp, nil
}

func (c *Client) CreateBoard(ctx context.Context, req models.CreateBoardRequest) (string, error) {
	var resp models.CreateBoardResponse
	if err := c.do(ctx, http.MethodPost, "boards", req, &resp); err != nil {
		return "", err
	}
	return resp.BoardID, nil
}

// Board fetches a snapshot of a board the user belongs to.
func (c *Client) Board(ctx context.Context, boardID string) (models.InitPayload, error) {
	var snap models.InitPayload
	err := c.do(ctx, http.MethodGet, "boards/"+url.PathEscape(boardID), nil, &snap)
	return snap, err
}

func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, "boards/"+url.PathEscape(boardID), nil, nil)
}

// Join asks to be admitted. The returned state is ready, awaiting
// confirmation or one of the refusal states.
func (c *Client) Join(ctx context.Context, boardID, passphrase string) (models.JoinBoardResponse, error) {
	var resp models.JoinBoardResponse
	err := c.do(ctx, http.MethodPost, "boards/"+url.PathEscape(boardID)+"/join", models.JoinBoardRequest{Passphrase: passphrase}, &resp)
	return resp, err
}

// Command applies one command over REST.
func (c *Client) Command(ctx context.Context, boardID, cmdType string, args any) error {
	cmd, err := models.NewCommand(uuid.NewString(), cmdType, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", cmdType, err)
	}
	return c.do(ctx, http.MethodPost, "boards/"+url.PathEscape(boardID)+"/commands", cmd, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s /%s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.UserID == "" {
		return
	}
	h.Set(middleware.HeaderUserID, c.UserID)
	h.Set(middleware.HeaderUserToken, c.Token)
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Kind = body.Kind
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// socketURL maps the server url onto ws or wss for path.
func (c *Client) socketURL(path string, query url.Values) string {
	u := c.BaseURL.JoinPath(path)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) dial(ctx context.Context, path string, query url.Values) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	c.authorize(h)
	conn, resp, err := c.Dialer.DialContext(ctx, c.socketURL(path, query), h)
	if err != nil && errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		return nil, resp, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", path, err)
	}
	return conn, resp, nil
}
