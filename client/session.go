// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/reconciler"
)

// ErrSessionClosed is returned by Send once the socket is gone.
var ErrSessionClosed = errors.New("session closed")

const sessionBuffer = 64

// Session is a live board channel. Every board event is folded into the
// replica before it is offered on Events.
type Session struct {
	BoardID string

	conn    *websocket.Conn
	replica *reconciler.Replica
	events  chan models.Event
	log     *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan models.CommandResult
	changed chan struct{}
	err     error

	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
}

// Connect opens the board socket. Users who are not admitted get an
// *AdmissionError; call Admit first for boards that need a passphrase or
// an invitation.
func (c *Client) Connect(ctx context.Context, boardID, passphrase string) (*Session, error) {
	query := url.Values{}
	if passphrase != "" {
		query.Set("passphrase", passphrase)
	}
	conn, resp, err := c.dial(ctx, "boards/"+url.PathEscape(boardID)+"/ws", query)
	if err != nil {
		if resp != nil {
			return nil, notAdmitted(resp)
		}
		return nil, err
	}

	s := &Session{
		BoardID: boardID,
		conn:    conn,
		replica: reconciler.New(),
		events:  make(chan models.Event, sessionBuffer),
		log:     slog.Default().With("board_id", boardID, "user_id", c.UserID),
		pending: make(map[string]chan models.CommandResult),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.read()
	return s, nil
}

// Replica is the session's view of the board.
func (s *Session) Replica() *reconciler.Replica {
	return s.replica
}

// Events offers each applied board event. It is closed when the session
// ends. Events are dropped when the reader falls behind; the replica never
// misses one.
func (s *Session) Events() <-chan models.Event {
	return s.events
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended. It is nil for a clean close and for
// a board deletion.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send applies a command and waits for the server's verdict. A rejection
// is returned as an *APIError carrying the rejection kind. The broadcast
// of an accepted command may arrive after Send returns; use Await to wait
// for its effect on the replica.
func (s *Session) Send(ctx context.Context, cmdType string, args any) error {
	cmd, err := models.NewCommand(uuid.NewString(), cmdType, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", cmdType, err)
	}

	reply := make(chan models.CommandResult, 1)
	s.mu.Lock()
	if s.closed() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.pending[cmd.RequestID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, cmd.RequestID)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err = s.conn.WriteJSON(cmd)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", cmdType, err)
	}

	select {
	case res := <-reply:
		if res.OK {
			return nil
		}
		return resultError(res)
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until cond holds for the replica state.
func (s *Session) Await(ctx context.Context, cond func(st *engine.State) bool) error {
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if st := s.replica.State(); st != nil && cond(st) {
			return nil
		}
		select {
		case <-changed:
		case <-s.done:
			if st := s.replica.State(); st != nil && cond(st) {
				return nil
			}
			return ErrSessionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close ends the session.
func (s *Session) Close() error {
	s.closing.Store(true)
	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) read() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			s.finish(err)
			return
		}

		ev, err := models.DecodeEvent(raw)
		if err != nil {
			s.log.Warn("Skipping undecodable event", "error", err)
			continue
		}

		if ev.Type == models.EventResult {
			s.resolve(ev)
			continue
		}

		if err := s.replica.Apply(ev); err != nil {
			s.log.Warn("Replica rejected event", "type", ev.Type, "seq", ev.Seq, "error", err)
			s.finish(err)
			s.conn.Close()
			return
		}

		s.mu.Lock()
		close(s.changed)
		s.changed = make(chan struct{})
		s.mu.Unlock()

		select {
		case s.events <- ev:
		default:
		}

		if ev.Type == models.EventBoardDeleted {
			s.finish(nil)
			s.conn.Close()
			return
		}
	}
}

func (s *Session) resolve(ev models.Event) {
	res, ok := ev.Data.(models.CommandResult)
	if !ok {
		return
	}
	s.mu.Lock()
	reply, ok := s.pending[res.RequestID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case reply <- res:
	default:
	}
}

func (s *Session) finish(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func resultError(res models.CommandResult) error {
	if res.Error == nil {
		return &APIError{Kind: "internal", Message: "command rejected"}
	}
	return &APIError{Kind: res.Error.Kind, Message: res.Error.Message}
}
