// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"slices"

	"github.com/danielhkuo/retroboard/models"
)

// Verify checks the structural invariants of a board. A violation means the
// state is corrupt; it wraps ErrCorrupted and the board must stop
// processing.
func Verify(st *State) error {
	if err := verifyColumns(st); err != nil {
		return err
	}
	if err := verifyNotes(st); err != nil {
		return err
	}
	return verifyVoting(st)
}

func dense(ranks []int) bool {
	sorted := slices.Clone(ranks)
	slices.Sort(sorted)
	for i, r := range sorted {
		if r != i {
			return false
		}
	}
	return true
}

func verifyColumns(st *State) error {
	idx := make([]int, len(st.Columns))
	for i, c := range st.Columns {
		idx[i] = c.Index
	}
	if !dense(idx) {
		return corrupted("column indices %v are not contiguous", idx)
	}
	return nil
}

func verifyNotes(st *State) error {
	byID := make(map[string]models.Note, len(st.Notes))
	for _, n := range st.Notes {
		if _, dup := byID[n.ID]; dup {
			return corrupted("duplicate note %s", n.ID)
		}
		byID[n.ID] = n
	}

	// scope key: column for roots, root id for children
	scopes := make(map[string][]int)
	for _, n := range st.Notes {
		if st.columnIndex(n.Position.Column) < 0 {
			return corrupted("note %s is in missing column %s", n.ID, n.Position.Column)
		}
		key := "column:" + n.Position.Column
		if n.IsChild() {
			root, ok := byID[n.Position.Stack]
			if !ok {
				return corrupted("note %s is stacked on missing note %s", n.ID, n.Position.Stack)
			}
			if root.IsChild() {
				return corrupted("note %s is stacked on child %s", n.ID, root.ID)
			}
			if root.Position.Column != n.Position.Column {
				return corrupted("note %s and its root %s are in different columns", n.ID, root.ID)
			}
			key = "stack:" + n.Position.Stack
		}
		scopes[key] = append(scopes[key], n.Position.Rank)
	}

	for key, ranks := range scopes {
		if !dense(ranks) {
			return corrupted("ranks %v in scope %s are not 0..%d", ranks, key, len(ranks)-1)
		}
	}
	return nil
}

func verifyVoting(st *State) error {
	open := -1
	for i, v := range st.Votings {
		if v.Status != models.VotingOpen {
			continue
		}
		if open >= 0 {
			return corrupted("sessions %s and %s are both open", st.Votings[open].ID, v.ID)
		}
		open = i
	}
	if open < 0 {
		return nil
	}

	session := st.Votings[open]
	perUser := make(map[string]int)
	perNote := make(map[[2]string]int)
	for _, v := range st.Votes {
		if v.Voting != session.ID {
			continue
		}
		perUser[v.User]++
		perNote[[2]string{v.User, v.Note}]++
	}
	for user, n := range perUser {
		if n > session.VoteLimit {
			return corrupted("user %s has %d votes over the limit of %d", user, n, session.VoteLimit)
		}
	}
	if !session.AllowMultipleVotes {
		for key, n := range perNote {
			if n > 1 {
				return corrupted("user %s voted %d times on note %s", key[0], n, key[1])
			}
		}
	}
	return nil
}
