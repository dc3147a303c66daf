// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "github.com/danielhkuo/retroboard/models"

// Actor is the caller of an operation as seen by the capability check.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) moderator() bool {
	return a.Role == models.RoleOwner || a.Role == models.RoleModerator
}

type Operation int

const (
	OpCreateNote Operation = iota
	OpEditNote
	OpMoveNote
	OpDeleteNote
	OpShareNote
	OpManageColumns
	OpVote
	OpManageVoting
	OpManageRequests
	OpUpdateBoard
	OpSetTimer
	OpManageParticipants
	OpDeleteBoard
)

var operationNames = map[Operation]string{
	OpCreateNote:         "create notes",
	OpEditNote:           "edit this note",
	OpMoveNote:           "move this note",
	OpDeleteNote:         "delete this note",
	OpShareNote:          "share notes",
	OpManageColumns:      "manage columns",
	OpVote:               "vote",
	OpManageVoting:       "manage voting",
	OpManageRequests:     "manage join requests",
	OpUpdateBoard:        "update the board",
	OpSetTimer:           "set the timer",
	OpManageParticipants: "manage participants",
	OpDeleteBoard:        "delete the board",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return "perform this operation"
}

// Allowed is the single capability check for every board operation.
// authorID is the author of the note being acted on, empty otherwise.
// Moderators may do everything but delete the board, which is owner-only.
// Participants may vote, and may create notes and change their own notes
// while the board is unlocked.
func Allowed(a Actor, op Operation, authorID string, locked bool) bool {
	if op == OpDeleteBoard {
		return a.Role == models.RoleOwner
	}
	if a.moderator() {
		return true
	}
	if a.Role != models.RoleParticipant {
		return false
	}

	switch op {
	case OpVote:
		return true
	case OpCreateNote:
		return !locked
	case OpEditNote, OpMoveNote, OpDeleteNote:
		return !locked && authorID == a.UserID
	}
	return false
}
