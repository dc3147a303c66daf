// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"encoding/json"

	"github.com/danielhkuo/retroboard/models"
)

// decode unmarshals command args. Commands without args decode to the zero
// value of T.
func decode[T any](cmd models.Command) (T, error) {
	var args T
	if len(cmd.Args) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(cmd.Args, &args); err != nil {
		return args, invalid("malformed %s args: %v", cmd.Type, err)
	}
	return args, nil
}

func run[T any](st *State, userID string, cmd models.Command, op func(*State, string, T) (*Result, error)) (*Result, error) {
	args, err := decode[T](cmd)
	if err != nil {
		return nil, err
	}
	return op(st, userID, args)
}

// Apply dispatches a client command to the matching operation.
func (e *Engine) Apply(st *State, userID string, cmd models.Command) (*Result, error) {
	switch cmd.Type {
	case models.CmdCreateNote:
		return run(st, userID, cmd, e.CreateNote)
	case models.CmdEditNote:
		return run(st, userID, cmd, e.EditNote)
	case models.CmdMoveNote:
		return run(st, userID, cmd, e.MoveNote)
	case models.CmdStackOnto:
		return run(st, userID, cmd, e.StackOnto)
	case models.CmdUnstack:
		return run(st, userID, cmd, e.Unstack)
	case models.CmdDeleteNote:
		return run(st, userID, cmd, e.DeleteNote)
	case models.CmdShareNote:
		return run(st, userID, cmd, e.ShareNote)

	case models.CmdCreateColumn:
		return run(st, userID, cmd, e.CreateColumn)
	case models.CmdUpdateColumn:
		return run(st, userID, cmd, e.UpdateColumn)
	case models.CmdDeleteColumn:
		return run(st, userID, cmd, e.DeleteColumn)

	case models.CmdCastVote:
		return run(st, userID, cmd, e.CastVote)
	case models.CmdRetractVote:
		return run(st, userID, cmd, e.RetractVote)
	case models.CmdOpenVoting:
		return run(st, userID, cmd, e.OpenVoting)
	case models.CmdUpdateVoting:
		return run(st, userID, cmd, e.UpdateVoting)
	case models.CmdCloseVoting:
		return e.CloseVoting(st, userID)
	case models.CmdAbortVoting:
		return e.AbortVoting(st, userID)

	case models.CmdAcceptRequest:
		return run(st, userID, cmd, e.AcceptRequests)
	case models.CmdRejectRequest:
		return run(st, userID, cmd, e.RejectRequests)

	case models.CmdUpdateBoard:
		return run(st, userID, cmd, e.UpdateBoard)
	case models.CmdSetTimer:
		return run(st, userID, cmd, e.SetTimer)
	case models.CmdCancelTimer:
		return e.CancelTimer(st, userID)

	case models.CmdUpdateParticipant:
		return run(st, userID, cmd, e.UpdateParticipant)
	case models.CmdChangeRole:
		return run(st, userID, cmd, e.ChangeRole)
	case models.CmdBanParticipant:
		return run(st, userID, cmd, e.BanParticipant)
	}
	return nil, invalid("unknown command %q", cmd.Type)
}
