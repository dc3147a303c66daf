// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"fmt"
)

// Event type constants
const (
	EventInit               = "INIT"
	EventBoardUpdated       = "BOARD_UPDATED"
	EventBoardTimerUpdated  = "BOARD_TIMER_UPDATED"
	EventBoardDeleted       = "BOARD_DELETED"
	EventColumnsUpdated     = "COLUMNS_UPDATED"
	EventColumnDeleted      = "COLUMN_DELETED"
	EventNotesUpdated       = "NOTES_UPDATED"
	EventNotesSync          = "NOTES_SYNC"
	EventNoteDeleted        = "NOTE_DELETED"
	EventParticipantCreated = "PARTICIPANT_CREATED"
	EventParticipantUpdated = "PARTICIPANT_UPDATED"
	EventParticipants       = "PARTICIPANTS_UPDATED"
	EventVotingCreated      = "VOTING_CREATED"
	EventVotingUpdated      = "VOTING_UPDATED"
	EventVotesUpdated       = "VOTES_UPDATED"
	EventRequestCreated     = "REQUEST_CREATED"
	EventRequestUpdated     = "REQUEST_UPDATED"

	// EventResult answers a command sent over the socket. It is not part of
	// the board stream and carries no sequence number.
	EventResult = "RESULT"
)

// Event is one message pushed to clients. Seq is assigned by the board
// sequencer and increases by one for every broadcast event.
type Event struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
	Data any    `json:"data,omitempty"`
}

// InitPayload is the full board state sent when a channel opens.
type InitPayload struct {
	Board        Board           `json:"board"`
	Columns      []Column        `json:"columns"`
	Notes        []Note          `json:"notes"`
	Participants []Participant   `json:"participants"`
	Votes        []Vote          `json:"votes"`
	Votings      []VotingSession `json:"votings"`
	Requests     []JoinRequest   `json:"requests"`
}

type NoteDeleted struct {
	Note        string `json:"note"`
	DeleteStack bool   `json:"delete_stack"`
}

type VotingUpdated struct {
	Voting VotingSession `json:"voting"`
	Notes  []Note        `json:"notes"`
}

type CommandResult struct {
	RequestID string         `json:"request_id"`
	OK        bool           `json:"ok"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

type wireEvent struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent parses a raw event and decodes its payload into the concrete
// type for its tag. Unknown tags are rejected.
func DecodeEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	var data any
	switch w.Type {
	case EventInit:
		data = &InitPayload{}
	case EventBoardUpdated:
		data = &Board{}
	case EventBoardTimerUpdated:
		data = &Timer{}
	case EventBoardDeleted:
		return Event{Type: w.Type, Seq: w.Seq}, nil
	case EventColumnsUpdated:
		data = &[]Column{}
	case EventColumnDeleted:
		data = new(string)
	case EventNotesUpdated, EventNotesSync:
		data = &[]Note{}
	case EventNoteDeleted:
		data = &NoteDeleted{}
	case EventParticipantCreated, EventParticipantUpdated:
		data = &Participant{}
	case EventParticipants:
		data = &[]Participant{}
	case EventVotingCreated:
		data = &VotingSession{}
	case EventVotingUpdated:
		data = &VotingUpdated{}
	case EventVotesUpdated:
		data = &[]Vote{}
	case EventRequestCreated, EventRequestUpdated:
		data = &JoinRequest{}
	case EventResult:
		data = &CommandResult{}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", w.Type)
	}

	if len(w.Data) > 0 {
		if err := json.Unmarshal(w.Data, data); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s payload: %w", w.Type, err)
		}
	}

	return Event{Type: w.Type, Seq: w.Seq, Data: deref(data)}, nil
}

func deref(v any) any {
	switch p := v.(type) {
	case *InitPayload:
		return *p
	case *Board:
		return *p
	case *Timer:
		return *p
	case *[]Column:
		return *p
	case *string:
		return *p
	case *[]Note:
		return *p
	case *NoteDeleted:
		return *p
	case *Participant:
		return *p
	case *[]Participant:
		return *p
	case *VotingSession:
		return *p
	case *VotingUpdated:
		return *p
	case *[]Vote:
		return *p
	case *JoinRequest:
		return *p
	case *CommandResult:
		return *p
	}
	return v
}
