// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/retroboard/models"
)

const owner = "owner"

// newTestEngine returns an engine with sequential ids and a fixed clock.
func newTestEngine() *Engine {
	n := 0
	e := New()
	e.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	e.Now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	e.PassphraseCost = bcrypt.MinCost
	return e
}

// newTestBoard creates a public board with two columns and the given extra
// participants.
func newTestBoard(t *testing.T, e *Engine, members ...string) *State {
	t.Helper()

	st, err := e.NewBoard(owner, models.CreateBoardRequest{
		Name: "Sprint 12",
		Columns: []models.CreateColumnArgs{
			{Name: "Went well", Color: "green"},
			{Name: "To improve", Color: "red"},
		},
	})
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	for _, m := range members {
		if _, _, err := e.Join(st, m, ""); err != nil {
			t.Fatalf("Failed to join %s: %v", m, err)
		}
	}
	return st
}

func column(st *State, i int) string {
	return st.Columns[i].ID
}

func mustCreateNote(t *testing.T, e *Engine, st *State, user, col, text string) string {
	t.Helper()
	if _, err := e.CreateNote(st, user, models.CreateNoteArgs{Column: col, Text: text}); err != nil {
		t.Fatalf("Failed to create note %q: %v", text, err)
	}
	return st.Notes[len(st.Notes)-1].ID
}

func position(t *testing.T, st *State, id string) models.Position {
	t.Helper()
	i := st.noteIndex(id)
	if i < 0 {
		t.Fatalf("Note %s not found", id)
	}
	return st.Notes[i].Position
}

func mustVerify(t *testing.T, st *State) {
	t.Helper()
	if err := Verify(st); err != nil {
		t.Fatalf("Board state failed verification: %v", err)
	}
}

func eventTypes(r *Result) []string {
	types := make([]string, len(r.Events))
	for i, ev := range r.Events {
		types[i] = ev.Type
	}
	return types
}

func TestNewBoard(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name    string
		req     models.CreateBoardRequest
		wantErr error
	}{
		{
			name: "public board with columns",
			req: models.CreateBoardRequest{
				Name:    "Retro",
				Columns: []models.CreateColumnArgs{{Name: "Start"}, {Name: "Stop"}, {Name: "Continue"}},
			},
		},
		{
			name: "passphrase board",
			req:  models.CreateBoardRequest{Name: "Retro", AccessPolicy: models.AccessByPassphrase, Passphrase: "hunter2"},
		},
		{
			name:    "passphrase board without passphrase",
			req:     models.CreateBoardRequest{Name: "Retro", AccessPolicy: models.AccessByPassphrase},
			wantErr: ErrInvalidOperation,
		},
		{
			name:    "missing name",
			req:     models.CreateBoardRequest{},
			wantErr: ErrInvalidOperation,
		},
		{
			name:    "unknown policy",
			req:     models.CreateBoardRequest{Name: "Retro", AccessPolicy: "SECRET"},
			wantErr: ErrInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := e.NewBoard(owner, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if len(st.Columns) != len(tt.req.Columns) {
				t.Errorf("Expected %d columns, got %d", len(tt.req.Columns), len(st.Columns))
			}
			p, ok := st.Participant(owner)
			if !ok || p.Role != models.RoleOwner {
				t.Errorf("Expected owner participant, got %+v", p)
			}
			if tt.req.AccessPolicy == models.AccessByPassphrase && st.Board.PassphraseHash == tt.req.Passphrase {
				t.Error("Passphrase stored in clear")
			}
			if !st.Board.AllowStacking || !st.Board.ShowAuthors {
				t.Error("Expected stacking and authors enabled by default")
			}
			mustVerify(t, st)
		})
	}
}

func TestApply(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	col := column(st, 0)

	cmd, err := models.NewCommand("r1", models.CmdCreateNote, models.CreateNoteArgs{Column: col, Text: "pairing helped"})
	if err != nil {
		t.Fatalf("Failed to build command: %v", err)
	}
	res, err := e.Apply(st, "alice", cmd)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Type != models.EventNotesUpdated {
		t.Errorf("Expected NOTES_UPDATED, got %v", eventTypes(res))
	}
	if res.Dirty&DirtyNotes == 0 {
		t.Error("Expected notes to be marked dirty")
	}

	t.Run("no args", func(t *testing.T) {
		_, err := e.Apply(st, owner, models.Command{Type: models.CmdCloseVoting})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation without an open session, got %v", err)
		}
	})

	t.Run("malformed args", func(t *testing.T) {
		_, err := e.Apply(st, "alice", models.Command{Type: models.CmdCreateNote, Args: json.RawMessage(`{"column": 7}`)})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := e.Apply(st, "alice", models.Command{Type: "rewind"})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("non-member", func(t *testing.T) {
		_, err := e.Apply(st, "mallory", cmd)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{notFound("note %s", "n1"), "not_found"},
		{forbidden("no"), "forbidden"},
		{invalid("bad"), "invalid_operation"},
		{limitExceeded("cap"), "limit_exceeded"},
		{fmt.Errorf("commit: %w", ErrConflict), "conflict"},
		{ErrBoardGone, "board_gone"},
		{corrupted("ranks"), "corrupted"},
		{errors.New("disk full"), "internal"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestClone(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	id := mustCreateNote(t, e, st, "alice", column(st, 0), "first")

	next := st.Clone()
	if _, err := e.EditNote(next, "alice", models.EditNoteArgs{Note: id, Text: "changed"}); err != nil {
		t.Fatalf("EditNote failed: %v", err)
	}

	if st.Notes[0].Text != "first" {
		t.Errorf("Clone shares notes with the original: %q", st.Notes[0].Text)
	}
}
