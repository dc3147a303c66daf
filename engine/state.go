// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"slices"

	"github.com/danielhkuo/retroboard/models"
)

// State is the authoritative replica of one board. It is owned by that
// board's sequencer; operations mutate a Clone and the sequencer swaps it in
// only when the operation succeeded.
type State struct {
	Board        models.Board
	Columns      []models.Column
	Notes        []models.Note
	Participants []models.Participant
	Votes        []models.Vote
	Votings      []models.VotingSession
	Requests     []models.JoinRequest
	Bans         []models.Ban
}

// Clone returns a copy that shares no mutable slices with st.
func (st *State) Clone() *State {
	return &State{
		Board:        st.Board,
		Columns:      slices.Clone(st.Columns),
		Notes:        slices.Clone(st.Notes),
		Participants: slices.Clone(st.Participants),
		Votes:        slices.Clone(st.Votes),
		Votings:      slices.Clone(st.Votings),
		Requests:     slices.Clone(st.Requests),
		Bans:         slices.Clone(st.Bans),
	}
}

// Init builds the INIT payload from the current state.
func (st *State) Init() models.InitPayload {
	return models.InitPayload{
		Board:        st.Board,
		Columns:      nonNil(st.Columns),
		Notes:        nonNil(st.Notes),
		Participants: nonNil(st.Participants),
		Votes:        nonNil(st.Votes),
		Votings:      nonNil(st.Votings),
		Requests:     nonNil(st.Requests),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

func (st *State) noteIndex(id string) int {
	return slices.IndexFunc(st.Notes, func(n models.Note) bool { return n.ID == id })
}

func (st *State) columnIndex(id string) int {
	return slices.IndexFunc(st.Columns, func(c models.Column) bool { return c.ID == id })
}

func (st *State) participantIndex(userID string) int {
	return slices.IndexFunc(st.Participants, func(p models.Participant) bool { return p.UserID == userID })
}

func (st *State) requestIndex(userID string) int {
	return slices.IndexFunc(st.Requests, func(r models.JoinRequest) bool { return r.UserID == userID })
}

// Participant looks up a member of the board.
func (st *State) Participant(userID string) (models.Participant, bool) {
	i := st.participantIndex(userID)
	if i < 0 {
		return models.Participant{}, false
	}
	return st.Participants[i], true
}

// Banned reports whether the user has been banned from the board.
func (st *State) Banned(userID string) bool {
	return slices.ContainsFunc(st.Bans, func(b models.Ban) bool { return b.UserID == userID })
}

// OpenVoting returns the index of the open voting session, or -1.
func (st *State) OpenVoting() int {
	return slices.IndexFunc(st.Votings, func(v models.VotingSession) bool { return v.Status == models.VotingOpen })
}

// Dirty flags name the collections an operation changed. The persistence
// layer rewrites exactly these collections on commit.
type Dirty uint16

const (
	DirtyBoard Dirty = 1 << iota
	DirtyColumns
	DirtyNotes
	DirtyParticipants
	DirtyVotes
	DirtyVotings
	DirtyRequests
	DirtyBans

	DirtyAll = DirtyBoard | DirtyColumns | DirtyNotes | DirtyParticipants |
		DirtyVotes | DirtyVotings | DirtyRequests | DirtyBans
)

// Result describes the effect of one successful operation: the events to
// broadcast, in order, and the collections to persist.
type Result struct {
	Events []models.Event
	Dirty  Dirty

	// Banned lists users whose channels must be closed after broadcast.
	Banned []string
}

// Changed reports whether the operation did anything. An unchanged result
// is a no-op retry and is neither committed nor broadcast.
func (r *Result) Changed() bool {
	return r.Dirty != 0 || len(r.Events) > 0
}

func (r *Result) emit(eventType string, data any, dirty Dirty) {
	r.Events = append(r.Events, models.Event{Type: eventType, Data: data})
	r.Dirty |= dirty
}

// Snapshot helpers. Payloads never alias state slices.

func (r *Result) notesUpdated(st *State) {
	r.emit(models.EventNotesUpdated, nonNil(st.Notes), DirtyNotes)
}

func (r *Result) columnsUpdated(st *State) {
	r.emit(models.EventColumnsUpdated, nonNil(st.Columns), DirtyColumns)
}

func (r *Result) votesUpdated(st *State) {
	r.emit(models.EventVotesUpdated, nonNil(st.Votes), DirtyVotes)
}

func (r *Result) participantsUpdated(st *State) {
	r.emit(models.EventParticipants, nonNil(st.Participants), DirtyParticipants)
}

func (r *Result) boardUpdated(st *State) {
	r.emit(models.EventBoardUpdated, st.Board, DirtyBoard)
}
