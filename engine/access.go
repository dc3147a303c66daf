// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"github.com/danielhkuo/retroboard/auth"
	"github.com/danielhkuo/retroboard/models"
)

// JoinOutcome is the admission state reached by a join attempt.
type JoinOutcome struct {
	State       string
	Participant *models.Participant
	Request     *models.JoinRequest
}

// Join decides whether userID may enter the board. Members are admitted
// directly and banned users never are. Public boards admit anyone; passphrase
// boards admit on the right passphrase; invite boards file a join request
// that a moderator resolves later. The board-wide ceiling on pending requests
// yields too_many_join_requests.
func (e *Engine) Join(st *State, userID, passphrase string) (JoinOutcome, *Result, error) {
	r := &Result{}
	if userID == "" {
		return JoinOutcome{}, nil, invalid("user id is required")
	}

	if st.Banned(userID) {
		return JoinOutcome{State: models.AccessStateBanned}, r, nil
	}
	if p, ok := st.Participant(userID); ok {
		return JoinOutcome{State: models.AccessStateReady, Participant: &p}, r, nil
	}

	switch st.Board.AccessPolicy {
	case models.AccessPublic:
		p := addParticipant(st, r, userID, models.RoleParticipant)
		return JoinOutcome{State: models.AccessStateReady, Participant: &p}, r, nil

	case models.AccessByPassphrase:
		if passphrase == "" {
			return JoinOutcome{State: models.AccessStatePassphraseRequired}, r, nil
		}
		if !auth.CheckPassphrase(st.Board.PassphraseHash, passphrase) {
			return JoinOutcome{State: models.AccessStateIncorrectPassphrase}, r, nil
		}
		p := addParticipant(st, r, userID, models.RoleParticipant)
		return JoinOutcome{State: models.AccessStateReady, Participant: &p}, r, nil

	case models.AccessByInvite:
		if i := st.requestIndex(userID); i >= 0 {
			req := st.Requests[i]
			switch req.Status {
			case models.RequestPending:
				return JoinOutcome{State: models.AccessStateAwaitingConfirmation, Request: &req}, r, nil
			case models.RequestRejected:
				return JoinOutcome{State: models.AccessStateRejected, Request: &req}, r, nil
			}
			// An accepted request without a participant means the user was
			// removed since; ask again.
		}

		if e.pendingRequests(st) >= e.JoinRequestCeiling {
			return JoinOutcome{State: models.AccessStateTooManyJoinRequests}, r, nil
		}

		req := models.JoinRequest{
			UserID:    userID,
			BoardID:   st.Board.ID,
			Status:    models.RequestPending,
			CreatedAt: e.now(),
		}
		if i := st.requestIndex(userID); i >= 0 {
			st.Requests[i] = req
		} else {
			st.Requests = append(st.Requests, req)
		}
		r.emit(models.EventRequestCreated, req, DirtyRequests)
		return JoinOutcome{State: models.AccessStateAwaitingConfirmation, Request: &req}, r, nil
	}

	return JoinOutcome{}, nil, corrupted("board %s has unknown access policy %q", st.Board.ID, st.Board.AccessPolicy)
}

func (e *Engine) pendingRequests(st *State) int {
	n := 0
	for _, req := range st.Requests {
		if req.Status == models.RequestPending {
			n++
		}
	}
	return n
}

func addParticipant(st *State, r *Result, userID, role string) models.Participant {
	p := models.Participant{
		UserID:  userID,
		BoardID: st.Board.ID,
		Role:    role,
	}
	st.Participants = append(st.Participants, p)
	r.emit(models.EventParticipantCreated, p, DirtyParticipants)
	return p
}

// SetConnected records socket presence for a participant. It is a no-op when
// the flag already has that value.
func (e *Engine) SetConnected(st *State, userID string, connected bool) (*Result, error) {
	i := st.participantIndex(userID)
	if i < 0 {
		return nil, notFound("participant %s", userID)
	}

	r := &Result{}
	if st.Participants[i].Connected == connected {
		return r, nil
	}
	st.Participants[i].Connected = connected
	r.participantsUpdated(st)
	return r, nil
}

// AcceptRequests admits the users behind pending join requests. All users
// are validated before any request changes.
func (e *Engine) AcceptRequests(st *State, userID string, args models.RequestsArgs) (*Result, error) {
	return e.resolveRequests(st, userID, args, models.RequestAccepted)
}

// RejectRequests turns pending join requests down.
func (e *Engine) RejectRequests(st *State, userID string, args models.RequestsArgs) (*Result, error) {
	return e.resolveRequests(st, userID, args, models.RequestRejected)
}

func (e *Engine) resolveRequests(st *State, userID string, args models.RequestsArgs, status string) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageRequests, ""); err != nil {
		return nil, err
	}
	if len(args.Users) == 0 {
		return nil, invalid("at least one user is required")
	}
	for _, u := range args.Users {
		if st.requestIndex(u) < 0 {
			return nil, notFound("join request from %s", u)
		}
	}

	r := &Result{}
	for _, u := range args.Users {
		i := st.requestIndex(u)
		if st.Requests[i].Status == status {
			continue
		}
		st.Requests[i].Status = status
		r.emit(models.EventRequestUpdated, st.Requests[i], DirtyRequests)

		if status == models.RequestAccepted && !st.Banned(u) {
			if _, ok := st.Participant(u); !ok {
				addParticipant(st, r, u, models.RoleParticipant)
			}
		}
	}
	return r, nil
}
