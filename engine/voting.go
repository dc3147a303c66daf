// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"cmp"
	"slices"

	"github.com/danielhkuo/retroboard/models"
)

// Tally sums the votes of one session per note, highest total first.
// Voter breakdowns are omitted for anonymous sessions.
func Tally(votes []models.Vote, session models.VotingSession) []models.NoteTally {
	byNote := make(map[string]*models.NoteTally)
	var order []string
	for _, v := range votes {
		if v.Voting != session.ID {
			continue
		}
		t, ok := byNote[v.Note]
		if !ok {
			t = &models.NoteTally{Note: v.Note}
			if !session.IsAnonymous {
				t.Users = make(map[string]int)
			}
			byNote[v.Note] = t
			order = append(order, v.Note)
		}
		t.Total++
		if t.Users != nil {
			t.Users[v.User]++
		}
	}

	tallies := make([]models.NoteTally, 0, len(order))
	for _, id := range order {
		tallies = append(tallies, *byNote[id])
	}
	slices.SortStableFunc(tallies, func(a, b models.NoteTally) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Note, b.Note)
	})
	return tallies
}

func countVotes(votes []models.Vote, session, user, note string) (total, onNote int) {
	for _, v := range votes {
		if v.Voting != session || v.User != user {
			continue
		}
		total++
		if v.Note == note {
			onNote++
		}
	}
	return total, onNote
}

func maxVotesPerUser(votes []models.Vote, session string) int {
	perUser := make(map[string]int)
	most := 0
	for _, v := range votes {
		if v.Voting == session {
			perUser[v.User]++
			most = max(most, perUser[v.User])
		}
	}
	return most
}

func (e *Engine) checkVoteLimit(limit int) error {
	if limit < 1 || limit > e.MaxVoteLimit {
		return invalid("vote limit must be between 1 and %d", e.MaxVoteLimit)
	}
	return nil
}

func (e *Engine) openSession(st *State) (int, error) {
	i := st.OpenVoting()
	if i < 0 {
		return -1, invalid("no voting session is open on board %s", st.Board.ID)
	}
	return i, nil
}

// votingUpdated carries the session together with the notes that received
// votes in it.
func votingUpdated(st *State, r *Result, session models.VotingSession) {
	voted := make(map[string]bool)
	for _, v := range st.Votes {
		if v.Voting == session.ID {
			voted[v.Note] = true
		}
	}
	notes := []models.Note{}
	for _, n := range st.Notes {
		if voted[n.ID] {
			notes = append(notes, n)
		}
	}
	r.emit(models.EventVotingUpdated, models.VotingUpdated{Voting: session, Notes: notes}, DirtyVotings)
}

// OpenVoting starts a new session. Only one session may be open at a time.
func (e *Engine) OpenVoting(st *State, userID string, args models.OpenVotingArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageVoting, ""); err != nil {
		return nil, err
	}
	if err := e.checkVoteLimit(args.VoteLimit); err != nil {
		return nil, err
	}
	if st.OpenVoting() >= 0 {
		return nil, invalid("a voting session is already open on board %s", st.Board.ID)
	}

	session := models.VotingSession{
		ID:                 e.NewID(),
		BoardID:            st.Board.ID,
		VoteLimit:          args.VoteLimit,
		AllowMultipleVotes: args.AllowMultipleVotes,
		IsAnonymous:        args.IsAnonymous,
		Status:             models.VotingOpen,
		CreatedAt:          e.now(),
	}
	st.Votings = append(st.Votings, session)

	r := &Result{}
	r.emit(models.EventVotingCreated, session, DirtyVotings)
	return r, nil
}

// UpdateVoting changes the limit of the open session. Votes already cast
// stay counted and the new limit applies to later casts only, so it may not
// drop below what a participant has already cast.
func (e *Engine) UpdateVoting(st *State, userID string, args models.UpdateVotingArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageVoting, ""); err != nil {
		return nil, err
	}
	if err := e.checkVoteLimit(args.VoteLimit); err != nil {
		return nil, err
	}
	i, err := e.openSession(st)
	if err != nil {
		return nil, err
	}

	r := &Result{}
	if st.Votings[i].VoteLimit == args.VoteLimit {
		return r, nil
	}
	if used := maxVotesPerUser(st.Votes, st.Votings[i].ID); args.VoteLimit < used {
		return nil, invalid("vote limit %d is below the %d votes a participant already cast", args.VoteLimit, used)
	}
	st.Votings[i].VoteLimit = args.VoteLimit
	votingUpdated(st, r, st.Votings[i])
	return r, nil
}

// CastVote records one vote on a note in the open session. A user's total
// is capped by the session limit; without multiple votes each note takes at
// most one vote per user.
func (e *Engine) CastVote(st *State, userID string, args models.NoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpVote, ""); err != nil {
		return nil, err
	}
	i, err := e.openSession(st)
	if err != nil {
		return nil, err
	}
	if st.noteIndex(args.Note) < 0 {
		return nil, notFound("note %s", args.Note)
	}

	session := st.Votings[i]
	total, onNote := countVotes(st.Votes, session.ID, a.UserID, args.Note)
	if total >= session.VoteLimit {
		return nil, limitExceeded("vote limit of %d reached", session.VoteLimit)
	}
	if !session.AllowMultipleVotes && onNote > 0 {
		return nil, limitExceeded("note %s already has your vote", args.Note)
	}

	st.Votes = append(st.Votes, models.Vote{
		BoardID:   st.Board.ID,
		Note:      args.Note,
		User:      a.UserID,
		Voting:    session.ID,
		CreatedAt: e.now(),
	})

	r := &Result{}
	r.votesUpdated(st)
	return r, nil
}

// RetractVote removes the caller's most recent vote on a note.
func (e *Engine) RetractVote(st *State, userID string, args models.NoteArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpVote, ""); err != nil {
		return nil, err
	}
	i, err := e.openSession(st)
	if err != nil {
		return nil, err
	}

	session := st.Votings[i].ID
	last := -1
	for j, v := range st.Votes {
		if v.Voting == session && v.User == a.UserID && v.Note == args.Note {
			last = j
		}
	}
	if last < 0 {
		return nil, notFound("no vote by %s on note %s", a.UserID, args.Note)
	}
	st.Votes = slices.Delete(st.Votes, last, last+1)

	r := &Result{}
	r.votesUpdated(st)
	return r, nil
}

// CloseVoting ends the open session and freezes its tally.
func (e *Engine) CloseVoting(st *State, userID string) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageVoting, ""); err != nil {
		return nil, err
	}
	i, err := e.openSession(st)
	if err != nil {
		return nil, err
	}

	st.Votings[i].Status = models.VotingClosed
	st.Votings[i].Results = Tally(st.Votes, st.Votings[i])

	r := &Result{}
	votingUpdated(st, r, st.Votings[i])
	return r, nil
}

// AbortVoting ends the open session and discards its votes.
func (e *Engine) AbortVoting(st *State, userID string) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageVoting, ""); err != nil {
		return nil, err
	}
	i, err := e.openSession(st)
	if err != nil {
		return nil, err
	}

	session := st.Votings[i].ID
	st.Votings[i].Status = models.VotingAborted

	r := &Result{}
	votingUpdated(st, r, st.Votings[i])

	before := len(st.Votes)
	st.Votes = slices.DeleteFunc(st.Votes, func(v models.Vote) bool { return v.Voting == session })
	if len(st.Votes) != before {
		r.votesUpdated(st)
	}
	return r, nil
}
