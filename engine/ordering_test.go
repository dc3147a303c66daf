// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/danielhkuo/retroboard/models"
)

func TestCreateNote(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	col := column(st, 0)

	for i, text := range []string{"one", "two", "three"} {
		id := mustCreateNote(t, e, st, "alice", col, text)
		if p := position(t, st, id); p.Rank != i || p.Stack != "" || p.Column != col {
			t.Errorf("Note %q: expected rank %d in %s, got %+v", text, i, col, p)
		}
	}
	mustVerify(t, st)

	tests := []struct {
		name    string
		args    models.CreateNoteArgs
		wantErr error
	}{
		{"blank text", models.CreateNoteArgs{Column: col, Text: "   "}, ErrInvalidOperation},
		{"unknown column", models.CreateNoteArgs{Column: "nope", Text: "hi"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.CreateNote(st, "alice", tt.args); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDeleteStandaloneNote(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	col := column(st, 0)

	a := mustCreateNote(t, e, st, "alice", col, "a")
	b := mustCreateNote(t, e, st, "alice", col, "b")
	c := mustCreateNote(t, e, st, "alice", col, "c")

	res, err := e.DeleteNote(st, "alice", models.DeleteNoteArgs{Note: b})
	if err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if res.Events[0].Type != models.EventNoteDeleted {
		t.Errorf("Expected NOTE_DELETED first, got %v", eventTypes(res))
	}

	if got := position(t, st, a).Rank; got != 0 {
		t.Errorf("Expected a at rank 0, got %d", got)
	}
	if got := position(t, st, c).Rank; got != 1 {
		t.Errorf("Expected c at rank 1, got %d", got)
	}
	mustVerify(t, st)

	// deleting again is a rejection, never a crash
	if _, err := e.DeleteNote(st, "alice", models.DeleteNoteArgs{Note: b}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on repeated delete, got %v", err)
	}
}

func TestDeleteStackRoot(t *testing.T) {
	e := newTestEngine()

	setup := func(t *testing.T) (st *State, root, first, second, other string) {
		st = newTestBoard(t, e)
		col := column(st, 0)
		root = mustCreateNote(t, e, st, owner, col, "root")
		other = mustCreateNote(t, e, st, owner, col, "other")
		first = mustCreateNote(t, e, st, owner, col, "first child")
		second = mustCreateNote(t, e, st, owner, col, "second child")
		for _, id := range []string{first, second} {
			if _, err := e.StackOnto(st, owner, models.StackOntoArgs{Note: id, Target: root}); err != nil {
				t.Fatalf("StackOnto failed: %v", err)
			}
		}
		mustVerify(t, st)
		return st, root, first, second, other
	}

	t.Run("promote highest-ranked child", func(t *testing.T) {
		st, root, first, second, other := setup(t)
		if p := position(t, st, second); p.Stack != root || p.Rank != 1 {
			t.Fatalf("Expected second child at rank 1 under root, got %+v", p)
		}

		if _, err := e.DeleteNote(st, owner, models.DeleteNoteArgs{Note: root}); err != nil {
			t.Fatalf("DeleteNote failed: %v", err)
		}

		if p := position(t, st, second); p.Stack != "" || p.Rank != 0 {
			t.Errorf("Expected promoted root at rank 0, got %+v", p)
		}
		if p := position(t, st, first); p.Stack != second || p.Rank != 0 {
			t.Errorf("Expected remaining child under new root at rank 0, got %+v", p)
		}
		if p := position(t, st, other); p.Rank != 1 {
			t.Errorf("Expected other standalone note to keep rank 1, got %+v", p)
		}
		mustVerify(t, st)
	})

	t.Run("delete whole stack", func(t *testing.T) {
		st, root, first, second, other := setup(t)

		if _, err := e.DeleteNote(st, owner, models.DeleteNoteArgs{Note: root, DeleteStack: true}); err != nil {
			t.Fatalf("DeleteNote failed: %v", err)
		}

		for _, id := range []string{root, first, second} {
			if st.noteIndex(id) >= 0 {
				t.Errorf("Expected %s to be deleted", id)
			}
		}
		if p := position(t, st, other); p.Rank != 0 {
			t.Errorf("Expected other note to move up to rank 0, got %+v", p)
		}
		mustVerify(t, st)
	})

	t.Run("delete child", func(t *testing.T) {
		st, root, first, second, _ := setup(t)

		if _, err := e.DeleteNote(st, owner, models.DeleteNoteArgs{Note: first}); err != nil {
			t.Fatalf("DeleteNote failed: %v", err)
		}
		if p := position(t, st, second); p.Stack != root || p.Rank != 0 {
			t.Errorf("Expected sibling to close the gap, got %+v", p)
		}
		mustVerify(t, st)
	})
}

func TestRemoveNoteLeavesInputIntact(t *testing.T) {
	notes := []models.Note{
		{ID: "a", Position: models.Position{Column: "c", Rank: 0}},
		{ID: "b", Position: models.Position{Column: "c", Rank: 1}},
	}
	before := slices.Clone(notes)

	remaining, removed := RemoveNote(notes, "a", false)

	if !slices.Equal(notes, before) {
		t.Error("RemoveNote modified its input")
	}
	if len(remaining) != 1 || remaining[0].Position.Rank != 0 {
		t.Errorf("Expected b at rank 0, got %+v", remaining)
	}
	if !slices.Equal(removed, []string{"a"}) {
		t.Errorf("Expected removed [a], got %v", removed)
	}

	if _, removed := RemoveNote(notes, "zzz", false); removed != nil {
		t.Errorf("Expected nil removed for unknown id, got %v", removed)
	}
}

func TestMoveNote(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	left, right := column(st, 0), column(st, 1)

	a := mustCreateNote(t, e, st, "alice", left, "a")
	b := mustCreateNote(t, e, st, "alice", left, "b")
	c := mustCreateNote(t, e, st, "alice", left, "c")

	order := func(col string) []string { return scopeIDs(st.Notes, col, "") }

	t.Run("move to front", func(t *testing.T) {
		if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: c, Column: left, Rank: 0}); err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if got := order(left); !slices.Equal(got, []string{c, a, b}) {
			t.Errorf("Expected [c a b], got %v", got)
		}
		mustVerify(t, st)
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		res, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: c, Column: left, Rank: 0})
		if err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if res.Changed() {
			t.Errorf("Expected no change, got %v", eventTypes(res))
		}
	})

	t.Run("rank past the end is clamped", func(t *testing.T) {
		if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: c, Column: left, Rank: 99}); err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if got := order(left); !slices.Equal(got, []string{a, b, c}) {
			t.Errorf("Expected [a b c], got %v", got)
		}
	})

	t.Run("across columns", func(t *testing.T) {
		if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: a, Column: right, Rank: 0}); err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if got := order(left); !slices.Equal(got, []string{b, c}) {
			t.Errorf("Expected [b c] left, got %v", got)
		}
		if got := order(right); !slices.Equal(got, []string{a}) {
			t.Errorf("Expected [a] right, got %v", got)
		}
		mustVerify(t, st)
	})

	t.Run("negative rank", func(t *testing.T) {
		_, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: a, Column: right, Rank: -1})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("stack carries children across columns", func(t *testing.T) {
		if _, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: c, Target: b}); err != nil {
			t.Fatalf("StackOnto failed: %v", err)
		}
		if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: b, Column: right, Rank: 1}); err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if p := position(t, st, c); p.Column != right || p.Stack != b {
			t.Errorf("Expected child to follow its root, got %+v", p)
		}
		mustVerify(t, st)
	})

	t.Run("child moves out of its stack", func(t *testing.T) {
		if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: c, Column: left, Rank: 0}); err != nil {
			t.Fatalf("MoveNote failed: %v", err)
		}
		if p := position(t, st, c); p.Column != left || p.Stack != "" || p.Rank != 0 {
			t.Errorf("Expected c standalone at rank 0 of left, got %+v", p)
		}
		mustVerify(t, st)
	})
}

// Two moves to the same rank computed from the same snapshot must both land
// once applied in order.
func TestMoveNoteSameTargetRank(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice", "bob")
	col := column(st, 0)

	a := mustCreateNote(t, e, st, "alice", col, "a")
	b := mustCreateNote(t, e, st, "alice", col, "b")
	c := mustCreateNote(t, e, st, "bob", col, "c")
	d := mustCreateNote(t, e, st, "bob", col, "d")

	if _, err := e.MoveNote(st, "alice", models.MoveNoteArgs{Note: a, Column: col, Rank: 2}); err != nil {
		t.Fatalf("First move failed: %v", err)
	}
	if _, err := e.MoveNote(st, "bob", models.MoveNoteArgs{Note: d, Column: col, Rank: 2}); err != nil {
		t.Fatalf("Second move failed: %v", err)
	}

	if got := scopeIDs(st.Notes, col, ""); !slices.Equal(got, []string{b, c, d, a}) {
		t.Errorf("Expected [b c d a], got %v", got)
	}
	mustVerify(t, st)
}

func TestStackOnto(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	col := column(st, 0)

	root := mustCreateNote(t, e, st, "alice", col, "root")
	child := mustCreateNote(t, e, st, "alice", col, "child")
	late := mustCreateNote(t, e, st, "alice", col, "late")
	nested := mustCreateNote(t, e, st, "alice", col, "nested")

	if _, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: child, Target: root}); err != nil {
		t.Fatalf("StackOnto failed: %v", err)
	}

	t.Run("target child redirects to root", func(t *testing.T) {
		if _, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: late, Target: child}); err != nil {
			t.Fatalf("StackOnto failed: %v", err)
		}
		if p := position(t, st, late); p.Stack != root || p.Rank != 1 {
			t.Errorf("Expected late under root at rank 1, got %+v", p)
		}
		mustVerify(t, st)
	})

	t.Run("stacking a root moves its children", func(t *testing.T) {
		if _, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: root, Target: nested}); err != nil {
			t.Fatalf("StackOnto failed: %v", err)
		}
		want := []string{root, child, late}
		if got := scopeIDs(st.Notes, col, nested); !slices.Equal(got, want) {
			t.Errorf("Expected %v under nested, got %v", want, got)
		}
		if got := scopeIDs(st.Notes, col, ""); !slices.Equal(got, []string{nested}) {
			t.Errorf("Expected only nested standalone, got %v", got)
		}
		mustVerify(t, st)
	})

	t.Run("onto itself", func(t *testing.T) {
		_, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: nested, Target: nested})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("onto own child", func(t *testing.T) {
		_, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: nested, Target: child})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("Expected ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("already stacked is a no-op", func(t *testing.T) {
		res, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: child, Target: nested})
		if err != nil {
			t.Fatalf("StackOnto failed: %v", err)
		}
		if res.Changed() {
			t.Error("Expected no change")
		}
	})

	t.Run("unstack", func(t *testing.T) {
		if _, err := e.Unstack(st, "alice", models.NoteArgs{Note: child}); err != nil {
			t.Fatalf("Unstack failed: %v", err)
		}
		if p := position(t, st, child); p.Stack != "" || p.Rank != 1 {
			t.Errorf("Expected child standalone at rank 1, got %+v", p)
		}
		if got := scopeIDs(st.Notes, col, nested); !slices.Equal(got, []string{root, late}) {
			t.Errorf("Expected siblings renumbered, got %v", got)
		}
		mustVerify(t, st)

		res, err := e.Unstack(st, "alice", models.NoteArgs{Note: child})
		if err != nil || res.Changed() {
			t.Errorf("Expected unstacking a standalone note to be a no-op, got %v %v", res, err)
		}
	})

	t.Run("stacking disabled", func(t *testing.T) {
		st.Board.AllowStacking = false
		defer func() { st.Board.AllowStacking = true }()

		_, err := e.StackOnto(st, "alice", models.StackOntoArgs{Note: child, Target: nested})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})
}

func TestNoteAuthorship(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice", "bob")
	col := column(st, 0)
	id := mustCreateNote(t, e, st, "alice", col, "mine")

	if _, err := e.EditNote(st, "bob", models.EditNoteArgs{Note: id, Text: "yours"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected bob to be forbidden from editing, got %v", err)
	}
	if _, err := e.DeleteNote(st, "bob", models.DeleteNoteArgs{Note: id}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected bob to be forbidden from deleting, got %v", err)
	}
	if _, err := e.EditNote(st, owner, models.EditNoteArgs{Note: id, Text: "moderated"}); err != nil {
		t.Errorf("Expected owner to edit any note, got %v", err)
	}

	st.Board.IsLocked = true
	if _, err := e.EditNote(st, "alice", models.EditNoteArgs{Note: id, Text: "late edit"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected locked board to reject edits, got %v", err)
	}
	if _, err := e.CreateNote(st, "alice", models.CreateNoteArgs{Column: col, Text: "late"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected locked board to reject new notes, got %v", err)
	}
}

func TestShareNote(t *testing.T) {
	e := newTestEngine()
	st := newTestBoard(t, e, "alice")
	id := mustCreateNote(t, e, st, "alice", column(st, 0), "present me")

	if _, err := e.ShareNote(st, "alice", models.NoteArgs{Note: id}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected participant to be forbidden, got %v", err)
	}
	if _, err := e.ShareNote(st, owner, models.NoteArgs{Note: id}); err != nil {
		t.Fatalf("ShareNote failed: %v", err)
	}
	if st.Board.SharedNote != id {
		t.Errorf("Expected shared note %s, got %q", id, st.Board.SharedNote)
	}

	res, err := e.DeleteNote(st, "alice", models.DeleteNoteArgs{Note: id})
	if err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if st.Board.SharedNote != "" {
		t.Error("Expected deleting the shared note to clear it")
	}
	if !slices.Contains(eventTypes(res), models.EventBoardUpdated) {
		t.Errorf("Expected BOARD_UPDATED, got %v", eventTypes(res))
	}
}
