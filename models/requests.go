// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "encoding/json"

// Command type constants
const (
	CmdCreateNote        = "createNote"
	CmdEditNote          = "editNote"
	CmdMoveNote          = "moveNote"
	CmdStackOnto         = "stackOnto"
	CmdUnstack           = "unstack"
	CmdDeleteNote        = "deleteNote"
	CmdShareNote         = "shareNote"
	CmdCreateColumn      = "createColumn"
	CmdUpdateColumn      = "updateColumn"
	CmdDeleteColumn      = "deleteColumn"
	CmdCastVote          = "castVote"
	CmdRetractVote       = "retractVote"
	CmdOpenVoting        = "openVoting"
	CmdUpdateVoting      = "updateVoting"
	CmdCloseVoting       = "closeVoting"
	CmdAbortVoting       = "abortVoting"
	CmdAcceptRequest     = "acceptRequest"
	CmdRejectRequest     = "rejectRequest"
	CmdUpdateBoard       = "updateBoard"
	CmdSetTimer          = "setTimer"
	CmdCancelTimer       = "cancelTimer"
	CmdUpdateParticipant = "updateParticipant"
	CmdChangeRole        = "changeRole"
	CmdBanParticipant    = "banParticipant"
)

// Command is a mutation request sent by a client, either over the socket
// or through POST /boards/{id}/commands.
type Command struct {
	RequestID string          `json:"request_id,omitempty"`
	Type      string          `json:"type"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// NewCommand builds a command with args encoded as JSON.
func NewCommand(requestID, cmdType string, args any) (Command, error) {
	cmd := Command{RequestID: requestID, Type: cmdType}
	if args == nil {
		return cmd, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Command{}, err
	}
	cmd.Args = raw
	return cmd, nil
}

// Command argument types

type CreateNoteArgs struct {
	Column string `json:"column"`
	Text   string `json:"text"`
}

type EditNoteArgs struct {
	Note string `json:"note"`
	Text string `json:"text"`
}

type MoveNoteArgs struct {
	Note   string `json:"note"`
	Column string `json:"column"`
	Rank   int    `json:"rank"`
	Stack  string `json:"stack,omitempty"`
}

type StackOntoArgs struct {
	Note   string `json:"note"`
	Target string `json:"target"`
}

// NoteArgs addresses a single note (unstack, castVote, retractVote, shareNote).
type NoteArgs struct {
	Note string `json:"note"`
}

type DeleteNoteArgs struct {
	Note        string `json:"note"`
	DeleteStack bool   `json:"delete_stack"`
}

type CreateColumnArgs struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	Visible *bool  `json:"visible,omitempty"`
	Index   *int   `json:"index,omitempty"`
}

type UpdateColumnArgs struct {
	Column  string  `json:"column"`
	Name    *string `json:"name,omitempty"`
	Color   *string `json:"color,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
	Index   *int    `json:"index,omitempty"`
}

type ColumnArgs struct {
	Column string `json:"column"`
}

type OpenVotingArgs struct {
	VoteLimit          int  `json:"vote_limit"`
	AllowMultipleVotes bool `json:"allow_multiple_votes"`
	IsAnonymous        bool `json:"is_anonymous"`
}

type UpdateVotingArgs struct {
	VoteLimit int `json:"vote_limit"`
}

// RequestsArgs resolves one or more join requests by user id.
type RequestsArgs struct {
	Users []string `json:"users"`
}

type UpdateBoardArgs struct {
	Name                  *string `json:"name,omitempty"`
	AccessPolicy          *string `json:"access_policy,omitempty"`
	Passphrase            *string `json:"passphrase,omitempty"`
	ShowAuthors           *bool   `json:"show_authors,omitempty"`
	ShowNotesOfOtherUsers *bool   `json:"show_notes_of_other_users,omitempty"`
	AllowStacking         *bool   `json:"allow_stacking,omitempty"`
	IsLocked              *bool   `json:"is_locked,omitempty"`
}

type SetTimerArgs struct {
	Seconds int `json:"seconds"`
}

type UpdateParticipantArgs struct {
	Ready             *bool `json:"ready,omitempty"`
	RaisedHand        *bool `json:"raised_hand,omitempty"`
	ShowHiddenColumns *bool `json:"show_hidden_columns,omitempty"`
}

type ChangeRoleArgs struct {
	User string `json:"user"`
	Role string `json:"role"`
}

type UserArgs struct {
	User string `json:"user"`
}

// Request types

type CreateBoardRequest struct {
	Name         string             `json:"name"`
	AccessPolicy string             `json:"access_policy"`
	Passphrase   string             `json:"passphrase,omitempty"`
	Columns      []CreateColumnArgs `json:"columns,omitempty"`
}

type JoinBoardRequest struct {
	Passphrase string `json:"passphrase,omitempty"`
}

// Response types

type CreateUserResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type CreateBoardResponse struct {
	BoardID string `json:"board_id"`
}

type JoinBoardResponse struct {
	State       string       `json:"state"`
	Participant *Participant `json:"participant,omitempty"`
	Request     *JoinRequest `json:"request,omitempty"`
}
