// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/danielhkuo/retroboard/models"
)

// A rank scope is either the standalone notes of a column (stack == "") or
// the children of one stack root. Within a scope ranks are always 0..n-1.

// scopeIDs returns the ids of one scope ordered by rank. Children are
// selected by their root alone.
func scopeIDs(notes []models.Note, column, stack string) []string {
	var scoped []models.Note
	for _, n := range notes {
		if n.Position.Stack != stack {
			continue
		}
		if stack == "" && n.Position.Column != column {
			continue
		}
		scoped = append(scoped, n)
	}
	slices.SortStableFunc(scoped, func(a, b models.Note) int {
		return cmp.Compare(a.Position.Rank, b.Position.Rank)
	})

	ids := make([]string, len(scoped))
	for i, n := range scoped {
		ids[i] = n.ID
	}
	return ids
}

// place assigns ids the positions 0..len(ids)-1 of the given scope.
func place(notes []models.Note, ids []string, column, stack string) {
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	for i := range notes {
		if r, ok := rank[notes[i].ID]; ok {
			notes[i].Position = models.Position{Column: column, Stack: stack, Rank: r}
		}
	}
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
}

// RemoveNote deletes a note and renumbers what it leaves behind. Deleting a
// child closes the gap among its siblings. Deleting a root with children
// promotes the highest-ranked child into the root's place unless deleteStack
// is set, in which case the children go too. It returns the remaining notes
// and the removed ids; removed is nil when id is unknown. The input slice is
// not modified. The reconciler uses the same function so clients derive the
// same ranks as the server.
func RemoveNote(notes []models.Note, id string, deleteStack bool) ([]models.Note, []string) {
	i := slices.IndexFunc(notes, func(n models.Note) bool { return n.ID == id })
	if i < 0 {
		return notes, nil
	}
	notes = slices.Clone(notes)
	n := notes[i]
	col := n.Position.Column
	removed := []string{id}

	if n.IsChild() {
		place(notes, without(scopeIDs(notes, col, n.Position.Stack), id), col, n.Position.Stack)
	} else {
		children := scopeIDs(notes, col, id)
		standalone := scopeIDs(notes, col, "")

		if len(children) > 0 && !deleteStack {
			promoted := children[len(children)-1]
			if at := slices.Index(standalone, id); at >= 0 {
				standalone[at] = promoted
			}
			place(notes, standalone, col, "")
			place(notes, children[:len(children)-1], col, promoted)
		} else {
			removed = append(removed, children...)
			place(notes, without(standalone, id), col, "")
		}
	}

	remaining := slices.DeleteFunc(notes, func(m models.Note) bool {
		return slices.Contains(removed, m.ID)
	})
	return remaining, removed
}

// CreateNote appends a standalone note at the end of the column.
func (e *Engine) CreateNote(st *State, userID string, args models.CreateNoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpCreateNote, ""); err != nil {
		return nil, err
	}
	if st.columnIndex(args.Column) < 0 {
		return nil, notFound("column %s", args.Column)
	}
	text := strings.TrimSpace(args.Text)
	if text == "" {
		return nil, invalid("note text is required")
	}

	st.Notes = append(st.Notes, models.Note{
		ID:      e.NewID(),
		BoardID: st.Board.ID,
		Author:  a.UserID,
		Text:    text,
		Position: models.Position{
			Column: args.Column,
			Rank:   len(scopeIDs(st.Notes, args.Column, "")),
		},
		CreatedAt: e.now(),
	})

	r := &Result{}
	r.notesUpdated(st)
	return r, nil
}

// EditNote replaces the text of a note.
func (e *Engine) EditNote(st *State, userID string, args models.EditNoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	i := st.noteIndex(args.Note)
	if i < 0 {
		return nil, notFound("note %s", args.Note)
	}
	if err := e.require(st, a, OpEditNote, st.Notes[i].Author); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(args.Text)
	if text == "" {
		return nil, invalid("note text is required")
	}

	r := &Result{}
	if st.Notes[i].Text == text {
		return r, nil
	}
	st.Notes[i].Text = text
	r.notesUpdated(st)
	return r, nil
}

// MoveNote moves a note to a rank among the standalone notes of a column,
// or into a stack when args.Stack is set. Ranks are computed against the
// current state, so concurrent moves to the same rank both land without
// duplicates. Repeating a move that already happened is a no-op.
func (e *Engine) MoveNote(st *State, userID string, args models.MoveNoteArgs) (*Result, error) {
	if args.Stack != "" {
		return e.StackOnto(st, userID, models.StackOntoArgs{Note: args.Note, Target: args.Stack})
	}

	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	i := st.noteIndex(args.Note)
	if i < 0 {
		return nil, notFound("note %s", args.Note)
	}
	n := st.Notes[i]
	if err := e.require(st, a, OpMoveNote, n.Author); err != nil {
		return nil, err
	}
	col := args.Column
	if col == "" {
		col = n.Position.Column
	}
	if st.columnIndex(col) < 0 {
		return nil, notFound("column %s", col)
	}
	if args.Rank < 0 {
		return nil, invalid("rank must not be negative")
	}

	target := without(scopeIDs(st.Notes, col, ""), n.ID)
	rank := min(args.Rank, len(target))

	r := &Result{}
	if !n.IsChild() && n.Position.Column == col && n.Position.Rank == rank {
		return r, nil
	}

	oldCol := n.Position.Column
	switch {
	case n.IsChild():
		place(st.Notes, without(scopeIDs(st.Notes, oldCol, n.Position.Stack), n.ID), oldCol, n.Position.Stack)
	case oldCol != col:
		place(st.Notes, without(scopeIDs(st.Notes, oldCol, ""), n.ID), oldCol, "")
		// children travel with their root
		place(st.Notes, scopeIDs(st.Notes, oldCol, n.ID), col, n.ID)
	}

	place(st.Notes, slices.Insert(target, rank, n.ID), col, "")

	r.notesUpdated(st)
	return r, nil
}

// StackOnto nests a note under the stack root of target, after the root's
// existing children. A target that is itself a child redirects to its root.
// Children of the moved note are re-pointed to the new root so stacks stay
// one level deep.
func (e *Engine) StackOnto(st *State, userID string, args models.StackOntoArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	i := st.noteIndex(args.Note)
	if i < 0 {
		return nil, notFound("note %s", args.Note)
	}
	n := st.Notes[i]
	if err := e.require(st, a, OpMoveNote, n.Author); err != nil {
		return nil, err
	}
	if !st.Board.AllowStacking {
		return nil, forbidden("stacking is disabled on board %s", st.Board.ID)
	}

	t := st.noteIndex(args.Target)
	if t < 0 {
		return nil, notFound("note %s", args.Target)
	}
	root := st.Notes[t]
	if root.IsChild() {
		ri := st.noteIndex(root.Position.Stack)
		if ri < 0 {
			return nil, corrupted("note %s references missing root %s", root.ID, root.Position.Stack)
		}
		root = st.Notes[ri]
	}
	if root.ID == n.ID {
		return nil, invalid("cannot stack note %s onto itself", n.ID)
	}

	r := &Result{}
	if n.Position.Stack == root.ID {
		return r, nil
	}

	oldCol := n.Position.Column
	var children []string
	if n.IsChild() {
		place(st.Notes, without(scopeIDs(st.Notes, oldCol, n.Position.Stack), n.ID), oldCol, n.Position.Stack)
	} else {
		children = scopeIDs(st.Notes, oldCol, n.ID)
		place(st.Notes, without(scopeIDs(st.Notes, oldCol, ""), n.ID), oldCol, "")
	}

	stack := scopeIDs(st.Notes, root.Position.Column, root.ID)
	stack = append(stack, n.ID)
	stack = append(stack, children...)
	place(st.Notes, stack, root.Position.Column, root.ID)

	r.notesUpdated(st)
	return r, nil
}

// Unstack turns a child into a standalone note at the end of its column.
// Unstacking a note that is not a child is a no-op.
func (e *Engine) Unstack(st *State, userID string, args models.NoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	i := st.noteIndex(args.Note)
	if i < 0 {
		return nil, notFound("note %s", args.Note)
	}
	n := st.Notes[i]
	if err := e.require(st, a, OpMoveNote, n.Author); err != nil {
		return nil, err
	}

	r := &Result{}
	if !n.IsChild() {
		return r, nil
	}

	col := n.Position.Column
	place(st.Notes, without(scopeIDs(st.Notes, col, n.Position.Stack), n.ID), col, n.Position.Stack)
	place(st.Notes, append(scopeIDs(st.Notes, col, ""), n.ID), col, "")

	r.notesUpdated(st)
	return r, nil
}

// DeleteNote removes a note following RemoveNote, together with its votes.
// Deleting a note that no longer exists reports ErrNotFound.
func (e *Engine) DeleteNote(st *State, userID string, args models.DeleteNoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	i := st.noteIndex(args.Note)
	if i < 0 {
		return nil, notFound("note %s", args.Note)
	}
	if err := e.require(st, a, OpDeleteNote, st.Notes[i].Author); err != nil {
		return nil, err
	}

	notes, removed := RemoveNote(st.Notes, args.Note, args.DeleteStack)
	st.Notes = notes

	r := &Result{}
	r.emit(models.EventNoteDeleted, models.NoteDeleted{Note: args.Note, DeleteStack: args.DeleteStack}, DirtyNotes)
	dropNoteVotes(st, r, removed)
	unshare(st, r, removed)
	return r, nil
}

// ShareNote points the board's presentation at a note, or clears it.
func (e *Engine) ShareNote(st *State, userID string, args models.NoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpShareNote, ""); err != nil {
		return nil, err
	}
	if args.Note != "" && st.noteIndex(args.Note) < 0 {
		return nil, notFound("note %s", args.Note)
	}

	r := &Result{}
	if st.Board.SharedNote == args.Note {
		return r, nil
	}
	st.Board.SharedNote = args.Note
	r.boardUpdated(st)
	return r, nil
}

func dropNoteVotes(st *State, r *Result, noteIDs []string) {
	before := len(st.Votes)
	st.Votes = slices.DeleteFunc(st.Votes, func(v models.Vote) bool {
		return slices.Contains(noteIDs, v.Note)
	})
	if len(st.Votes) != before {
		r.votesUpdated(st)
	}
}

func unshare(st *State, r *Result, noteIDs []string) {
	if st.Board.SharedNote != "" && slices.Contains(noteIDs, st.Board.SharedNote) {
		st.Board.SharedNote = ""
		r.boardUpdated(st)
	}
}
