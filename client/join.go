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

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/retroboard/models"
)

// ErrNotAdmitted is wrapped by AdmissionError.
var ErrNotAdmitted = errors.New("not admitted")

// AdmissionError reports a join that ended in a state other than ready.
type AdmissionError struct {
	State   string
	Request *models.JoinRequest
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("not admitted: %s", e.State)
}

func (e *AdmissionError) Unwrap() error {
	return ErrNotAdmitted
}

// Admit runs the join state machine to completion. An awaiting
// confirmation state waits on the request channel until a moderator
// decides, so the call may block until ctx is done. It returns nil once the
// user is a participant.
func (c *Client) Admit(ctx context.Context, boardID, passphrase string) error {
	resp, err := c.Join(ctx, boardID, passphrase)
	if err != nil {
		return err
	}

	switch resp.State {
	case models.AccessStateReady:
		return nil
	case models.AccessStateAwaitingConfirmation:
	default:
		return &AdmissionError{State: resp.State, Request: resp.Request}
	}

	req, err := c.WaitForDecision(ctx, boardID)
	if err != nil {
		return err
	}
	if req.Status != models.RequestAccepted {
		return &AdmissionError{State: models.AccessStateRejected, Request: &req}
	}

	// Acceptance made the user a participant; joining again confirms it.
	resp, err = c.Join(ctx, boardID, passphrase)
	if err != nil {
		return err
	}
	if resp.State != models.AccessStateReady {
		return &AdmissionError{State: resp.State, Request: resp.Request}
	}
	return nil
}

// WaitForDecision blocks until the user's join request is accepted or
// rejected and returns it.
func (c *Client) WaitForDecision(ctx context.Context, boardID string) (models.JoinRequest, error) {
	conn, resp, err := c.dial(ctx, "boards/"+url.PathEscape(boardID)+"/requests/ws", nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return models.JoinRequest{}, readAPIError(resp)
		}
		return models.JoinRequest{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return models.JoinRequest{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return models.JoinRequest{}, fmt.Errorf("request channel closed: %w", err)
			}
			return models.JoinRequest{}, fmt.Errorf("failed to read request channel: %w", err)
		}

		ev, err := models.DecodeEvent(raw)
		if err != nil {
			return models.JoinRequest{}, err
		}
		switch ev.Type {
		case models.EventBoardDeleted:
			return models.JoinRequest{}, &APIError{Status: http.StatusGone, Kind: "board_gone", Message: "board deleted"}
		case models.EventRequestUpdated:
			req, ok := ev.Data.(models.JoinRequest)
			if ok && req.Status != models.RequestPending {
				return req, nil
			}
		}
	}
}

// notAdmitted decodes the 403 body of a refused board socket handshake.
func notAdmitted(resp *http.Response) error {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var body models.JoinBoardResponse
	if resp.StatusCode == http.StatusForbidden && json.Unmarshal(raw, &body) == nil && body.State != "" {
		return &AdmissionError{State: body.State, Request: body.Request}
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return readAPIError(resp)
}
