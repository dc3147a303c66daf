// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Access policy constants
const (
	AccessPublic       = "PUBLIC"
	AccessByPassphrase = "BY_PASSPHRASE"
	AccessByInvite     = "BY_INVITE"
)

// Participant role constants
const (
	RoleOwner       = "OWNER"
	RoleModerator   = "MODERATOR"
	RoleParticipant = "PARTICIPANT"
)

// Voting session status constants
const (
	VotingOpen    = "OPEN"
	VotingClosed  = "CLOSED"
	VotingAborted = "ABORTED"
)

// Join request status constants
const (
	RequestPending  = "PENDING"
	RequestAccepted = "ACCEPTED"
	RequestRejected = "REJECTED"
)

// Admission states returned by a join attempt
const (
	AccessStatePending              = "pending"
	AccessStateReady                = "ready"
	AccessStatePassphraseRequired   = "passphrase_required"
	AccessStateIncorrectPassphrase  = "incorrect_passphrase"
	AccessStateTooManyJoinRequests  = "too_many_join_requests"
	AccessStateAwaitingConfirmation = "awaiting_confirmation"
	AccessStateRejected             = "rejected"
	AccessStateBanned               = "banned"
)

type Board struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	AccessPolicy          string     `json:"access_policy"`
	PassphraseHash        string     `json:"-"` // Never expose in JSON
	ShowAuthors           bool       `json:"show_authors"`
	ShowNotesOfOtherUsers bool       `json:"show_notes_of_other_users"`
	AllowStacking         bool       `json:"allow_stacking"`
	IsLocked              bool       `json:"is_locked"`
	TimerStart            *time.Time `json:"timer_start,omitempty"`
	TimerEnd              *time.Time `json:"timer_end,omitempty"`
	SharedNote            string     `json:"shared_note,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Timer is the payload of BOARD_TIMER_UPDATED.
type Timer struct {
	TimerStart *time.Time `json:"timer_start,omitempty"`
	TimerEnd   *time.Time `json:"timer_end,omitempty"`
}

type Participant struct {
	UserID            string `json:"user_id"`
	BoardID           string `json:"board_id"`
	Role              string `json:"role"`
	Connected         bool   `json:"connected"`
	Ready             bool   `json:"ready"`
	RaisedHand        bool   `json:"raised_hand"`
	ShowHiddenColumns bool   `json:"show_hidden_columns"`
}

// IsModerator reports whether the participant may moderate the board.
func (p Participant) IsModerator() bool {
	return p.Role == RoleOwner || p.Role == RoleModerator
}

type Column struct {
	ID      string `json:"id"`
	BoardID string `json:"board_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Visible bool   `json:"visible"`
	Index   int    `json:"index"`
}

// Position places a note. An empty Stack means the note is a stack root or
// standalone; otherwise Stack is the id of its root in the same column.
type Position struct {
	Column string `json:"column"`
	Stack  string `json:"stack,omitempty"`
	Rank   int    `json:"rank"`
}

type Note struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	Position  Position  `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// IsChild reports whether the note is nested under a stack root.
func (n Note) IsChild() bool {
	return n.Position.Stack != ""
}

type Vote struct {
	BoardID   string    `json:"board_id"`
	Note      string    `json:"note"`
	User      string    `json:"user,omitempty"`
	Voting    string    `json:"voting"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteTally is the number of votes one note received in a session.
type NoteTally struct {
	Note  string         `json:"note"`
	Total int            `json:"total"`
	Users map[string]int `json:"users,omitempty"` // empty for anonymous sessions
}

type VotingSession struct {
	ID                 string      `json:"id"`
	BoardID            string      `json:"board_id"`
	VoteLimit          int         `json:"vote_limit"`
	AllowMultipleVotes bool        `json:"allow_multiple_votes"`
	IsAnonymous        bool        `json:"is_anonymous"`
	Status             string      `json:"status"`
	Results            []NoteTally `json:"results,omitempty"` // frozen when closed
	CreatedAt          time.Time   `json:"created_at"`
}

type JoinRequest struct {
	UserID    string    `json:"user_id"`
	BoardID   string    `json:"board_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Ban keeps a removed user out of a board.
type Ban struct {
	UserID    string    `json:"user_id"`
	BoardID   string    `json:"board_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
