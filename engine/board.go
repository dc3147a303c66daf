// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/retroboard/auth"
	"github.com/danielhkuo/retroboard/models"
)

func (e *Engine) hashPassphrase(passphrase string) (string, error) {
	return auth.HashPassphrase(passphrase, e.PassphraseCost)
}

// UpdateBoard changes board settings. Switching to BY_PASSPHRASE requires a
// passphrase unless one is already set; leaving it drops the stored hash.
func (e *Engine) UpdateBoard(st *State, userID string, args models.UpdateBoardArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpUpdateBoard, ""); err != nil {
		return nil, err
	}

	b := st.Board
	if args.Name != nil {
		name := strings.TrimSpace(*args.Name)
		if name == "" {
			return nil, invalid("board name is required")
		}
		b.Name = name
	}
	if args.AccessPolicy != nil {
		if !validPolicy(*args.AccessPolicy) {
			return nil, invalid("unknown access policy %q", *args.AccessPolicy)
		}
		b.AccessPolicy = *args.AccessPolicy
	}
	if args.Passphrase != nil && *args.Passphrase != "" {
		if b.AccessPolicy != models.AccessByPassphrase {
			return nil, invalid("a passphrase only applies to %s boards", models.AccessByPassphrase)
		}
		hash, err := e.hashPassphrase(*args.Passphrase)
		if err != nil {
			return nil, err
		}
		b.PassphraseHash = hash
	}
	if b.AccessPolicy == models.AccessByPassphrase && b.PassphraseHash == "" {
		return nil, invalid("passphrase is required for %s boards", models.AccessByPassphrase)
	}
	if b.AccessPolicy != models.AccessByPassphrase {
		b.PassphraseHash = ""
	}
	if args.ShowAuthors != nil {
		b.ShowAuthors = *args.ShowAuthors
	}
	if args.ShowNotesOfOtherUsers != nil {
		b.ShowNotesOfOtherUsers = *args.ShowNotesOfOtherUsers
	}
	if args.AllowStacking != nil {
		b.AllowStacking = *args.AllowStacking
	}
	if args.IsLocked != nil {
		b.IsLocked = *args.IsLocked
	}

	r := &Result{}
	if b == st.Board {
		return r, nil
	}
	prev := st.Board
	st.Board = b
	r.boardUpdated(st)
	if prev.ShowAuthors != b.ShowAuthors || prev.ShowNotesOfOtherUsers != b.ShowNotesOfOtherUsers {
		// Recipients need the notes again under the new visibility.
		r.emit(models.EventNotesSync, nonNil(st.Notes), 0)
	}
	return r, nil
}

// SetTimer starts a countdown of the given length from now.
func (e *Engine) SetTimer(st *State, userID string, args models.SetTimerArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpSetTimer, ""); err != nil {
		return nil, err
	}
	if args.Seconds <= 0 {
		return nil, invalid("timer length must be positive")
	}

	start := e.now()
	end := start.Add(time.Duration(args.Seconds) * time.Second)
	st.Board.TimerStart = &start
	st.Board.TimerEnd = &end

	r := &Result{}
	r.emit(models.EventBoardTimerUpdated, models.Timer{TimerStart: &start, TimerEnd: &end}, DirtyBoard)
	return r, nil
}

// CancelTimer clears the countdown.
func (e *Engine) CancelTimer(st *State, userID string) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpSetTimer, ""); err != nil {
		return nil, err
	}

	r := &Result{}
	if st.Board.TimerStart == nil && st.Board.TimerEnd == nil {
		return r, nil
	}
	st.Board.TimerStart = nil
	st.Board.TimerEnd = nil
	r.emit(models.EventBoardTimerUpdated, models.Timer{}, DirtyBoard)
	return r, nil
}

// UpdateParticipant changes the caller's own presence flags.
func (e *Engine) UpdateParticipant(st *State, userID string, args models.UpdateParticipantArgs) (*Result, error) {
	i := st.participantIndex(userID)
	if i < 0 {
		return nil, forbidden("user %s is not a participant of board %s", userID, st.Board.ID)
	}

	p := st.Participants[i]
	if args.Ready != nil {
		p.Ready = *args.Ready
	}
	if args.RaisedHand != nil {
		p.RaisedHand = *args.RaisedHand
	}
	if args.ShowHiddenColumns != nil {
		p.ShowHiddenColumns = *args.ShowHiddenColumns
	}

	r := &Result{}
	if p == st.Participants[i] {
		return r, nil
	}
	st.Participants[i] = p
	r.emit(models.EventParticipantUpdated, p, DirtyParticipants)
	return r, nil
}

// ChangeRole promotes or demotes a participant. The owner's role is fixed
// and nobody else can become owner.
func (e *Engine) ChangeRole(st *State, userID string, args models.ChangeRoleArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageParticipants, ""); err != nil {
		return nil, err
	}
	if args.Role != models.RoleModerator && args.Role != models.RoleParticipant {
		return nil, invalid("role must be %s or %s", models.RoleModerator, models.RoleParticipant)
	}
	i := st.participantIndex(args.User)
	if i < 0 {
		return nil, notFound("participant %s", args.User)
	}
	if st.Participants[i].Role == models.RoleOwner {
		return nil, forbidden("the owner's role cannot change")
	}

	r := &Result{}
	if st.Participants[i].Role == args.Role {
		return r, nil
	}
	st.Participants[i].Role = args.Role
	r.emit(models.EventParticipantUpdated, st.Participants[i], DirtyParticipants)
	return r, nil
}

// BanParticipant removes a participant for good. Their record is deleted
// and a ban keeps them from joining again.
func (e *Engine) BanParticipant(st *State, userID string, args models.UserArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageParticipants, ""); err != nil {
		return nil, err
	}
	i := st.participantIndex(args.User)
	if i < 0 {
		return nil, notFound("participant %s", args.User)
	}
	if args.User == a.UserID {
		return nil, invalid("cannot ban yourself")
	}
	if st.Participants[i].Role == models.RoleOwner {
		return nil, forbidden("the owner cannot be banned")
	}

	st.Participants = slices.Delete(st.Participants, i, i+1)
	st.Bans = append(st.Bans, models.Ban{UserID: args.User, BoardID: st.Board.ID, CreatedAt: e.now()})

	r := &Result{Banned: []string{args.User}}
	r.participantsUpdated(st)
	r.Dirty |= DirtyBans
	return r, nil
}
