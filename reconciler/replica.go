// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconciler

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
)

var (
	// ErrOutOfSync means events were missed or arrived before INIT. The
	// replica ignores further deltas until the next INIT.
	ErrOutOfSync = errors.New("replica out of sync")

	// ErrBoardDeleted is returned for events that follow BOARD_DELETED.
	ErrBoardDeleted = errors.New("board deleted")
)

// Replica is a client-side copy of one board, advanced only by server
// events. It is safe for concurrent use.
type Replica struct {
	mu      sync.RWMutex
	state   *engine.State
	seq     uint64
	synced  bool
	deleted bool
	results map[string][]models.Note
}

func New() *Replica {
	return &Replica{results: make(map[string][]models.Note)}
}

// Apply folds one event into the replica. Events with a sequence number at
// or below the last applied one are ignored. A gap returns ErrOutOfSync
// and leaves the state as it was.
func (r *Replica) Apply(ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return ErrBoardDeleted
	}

	switch ev.Type {
	case models.EventResult:
		return nil
	case models.EventInit:
		payload, ok := ev.Data.(models.InitPayload)
		if !ok {
			return payloadError(ev)
		}
		r.reset(payload, ev.Seq)
		return nil
	case models.EventBoardDeleted:
		// Terminal, so it applies even across a gap.
		r.deleted = true
		r.seq = max(r.seq, ev.Seq)
		return nil
	case models.EventRequestCreated, models.EventRequestUpdated:
		// Request channels carry these outside the board sequence.
		if ev.Seq == 0 || !r.synced {
			return r.applyUnsequenced(ev)
		}
	}

	if !r.synced {
		return fmt.Errorf("%w: %s received while awaiting INIT", ErrOutOfSync, ev.Type)
	}
	if ev.Seq != 0 && ev.Seq <= r.seq {
		return nil
	}
	if ev.Seq != r.seq+1 {
		r.synced = false
		return fmt.Errorf("%w: expected seq %d, got %d", ErrOutOfSync, r.seq+1, ev.Seq)
	}

	if err := r.fold(ev); err != nil {
		return err
	}
	r.seq = ev.Seq
	return nil
}

func (r *Replica) reset(p models.InitPayload, seq uint64) {
	r.state = &engine.State{
		Board:        p.Board,
		Columns:      slices.Clone(p.Columns),
		Notes:        slices.Clone(p.Notes),
		Participants: slices.Clone(p.Participants),
		Votes:        slices.Clone(p.Votes),
		Votings:      slices.Clone(p.Votings),
		Requests:     slices.Clone(p.Requests),
	}
	r.seq = seq
	r.synced = true
	clear(r.results)
}

func (r *Replica) applyUnsequenced(ev models.Event) error {
	req, ok := ev.Data.(models.JoinRequest)
	if !ok {
		return payloadError(ev)
	}
	if r.state == nil {
		r.state = &engine.State{}
	}
	r.state.Requests = upsert(r.state.Requests, req, func(x models.JoinRequest) bool { return x.UserID == req.UserID })
	return nil
}

func (r *Replica) fold(ev models.Event) error {
	st := r.state

	switch ev.Type {
	case models.EventBoardUpdated:
		board, ok := ev.Data.(models.Board)
		if !ok {
			return payloadError(ev)
		}
		st.Board = board

	case models.EventBoardTimerUpdated:
		timer, ok := ev.Data.(models.Timer)
		if !ok {
			return payloadError(ev)
		}
		st.Board.TimerStart = timer.TimerStart
		st.Board.TimerEnd = timer.TimerEnd

	case models.EventColumnsUpdated:
		columns, ok := ev.Data.([]models.Column)
		if !ok {
			return payloadError(ev)
		}
		st.Columns = slices.Clone(columns)

	case models.EventColumnDeleted:
		id, ok := ev.Data.(string)
		if !ok {
			return payloadError(ev)
		}
		st.Columns = slices.DeleteFunc(st.Columns, func(c models.Column) bool { return c.ID == id })
		slices.SortStableFunc(st.Columns, func(a, b models.Column) int { return cmp.Compare(a.Index, b.Index) })
		for i := range st.Columns {
			st.Columns[i].Index = i
		}
		var removed []string
		st.Notes = slices.DeleteFunc(st.Notes, func(n models.Note) bool {
			if n.Position.Column == id {
				removed = append(removed, n.ID)
				return true
			}
			return false
		})
		st.Votes = dropVotes(st.Votes, removed)

	case models.EventNotesUpdated, models.EventNotesSync:
		notes, ok := ev.Data.([]models.Note)
		if !ok {
			return payloadError(ev)
		}
		st.Notes = slices.Clone(notes)

	case models.EventNoteDeleted:
		del, ok := ev.Data.(models.NoteDeleted)
		if !ok {
			return payloadError(ev)
		}
		notes, removed := engine.RemoveNote(st.Notes, del.Note, del.DeleteStack)
		st.Notes = notes
		st.Votes = dropVotes(st.Votes, removed)

	case models.EventParticipantCreated, models.EventParticipantUpdated:
		p, ok := ev.Data.(models.Participant)
		if !ok {
			return payloadError(ev)
		}
		st.Participants = upsert(st.Participants, p, func(x models.Participant) bool { return x.UserID == p.UserID })

	case models.EventParticipants:
		participants, ok := ev.Data.([]models.Participant)
		if !ok {
			return payloadError(ev)
		}
		st.Participants = slices.Clone(participants)

	case models.EventVotingCreated:
		session, ok := ev.Data.(models.VotingSession)
		if !ok {
			return payloadError(ev)
		}
		st.Votings = upsert(st.Votings, session, func(x models.VotingSession) bool { return x.ID == session.ID })

	case models.EventVotingUpdated:
		upd, ok := ev.Data.(models.VotingUpdated)
		if !ok {
			return payloadError(ev)
		}
		st.Votings = upsert(st.Votings, upd.Voting, func(x models.VotingSession) bool { return x.ID == upd.Voting.ID })
		r.results[upd.Voting.ID] = slices.Clone(upd.Notes)

	case models.EventVotesUpdated:
		votes, ok := ev.Data.([]models.Vote)
		if !ok {
			return payloadError(ev)
		}
		st.Votes = slices.Clone(votes)

	case models.EventRequestCreated, models.EventRequestUpdated:
		req, ok := ev.Data.(models.JoinRequest)
		if !ok {
			return payloadError(ev)
		}
		st.Requests = upsert(st.Requests, req, func(x models.JoinRequest) bool { return x.UserID == req.UserID })

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// State returns a copy of the current board state, or nil before INIT.
func (r *Replica) State() *engine.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return nil
	}
	return r.state.Clone()
}

// Seq is the sequence number of the last applied event.
func (r *Replica) Seq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Synced reports whether the replica has an INIT and no known gap.
func (r *Replica) Synced() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.synced
}

func (r *Replica) Deleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deleted
}

// Results returns the voted notes reported when votingID last changed
// status.
func (r *Replica) Results(votingID string) []models.Note {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.results[votingID])
}

// Tally totals the votes of a session as the replica currently sees them.
func (r *Replica) Tally(votingID string) []models.NoteTally {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return nil
	}
	i := slices.IndexFunc(r.state.Votings, func(v models.VotingSession) bool { return v.ID == votingID })
	if i < 0 {
		return nil
	}
	return engine.Tally(r.state.Votes, r.state.Votings[i])
}

func upsert[T any](items []T, item T, match func(T) bool) []T {
	if i := slices.IndexFunc(items, match); i >= 0 {
		items = slices.Clone(items)
		items[i] = item
		return items
	}
	return append(slices.Clone(items), item)
}

func dropVotes(votes []models.Vote, notes []string) []models.Vote {
	if len(notes) == 0 {
		return votes
	}
	return slices.DeleteFunc(slices.Clone(votes), func(v models.Vote) bool {
		return slices.Contains(notes, v.Note)
	})
}

func payloadError(ev models.Event) error {
	return fmt.Errorf("unexpected %s payload %T", ev.Type, ev.Data)
}
