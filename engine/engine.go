// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/retroboard/models"
)

// Default limits
const (
	DefaultJoinRequestCeiling = 50
	DefaultMaxVoteLimit       = 99
)

// Engine applies board operations to a State. It holds no board data of its
// own and is safe to share between sequencers.
type Engine struct {
	Now   func() time.Time
	NewID func() string

	// JoinRequestCeiling caps the number of PENDING join requests per board.
	JoinRequestCeiling int
	MaxVoteLimit       int
	PassphraseCost     int
}

// New returns an Engine with production defaults.
func New() *Engine {
	return &Engine{
		Now:                time.Now,
		NewID:              uuid.NewString,
		JoinRequestCeiling: DefaultJoinRequestCeiling,
		MaxVoteLimit:       DefaultMaxVoteLimit,
		PassphraseCost:     bcrypt.DefaultCost,
	}
}

func (e *Engine) now() time.Time {
	return e.Now().UTC()
}

// actor resolves the caller's membership. Non-members may not mutate.
func (e *Engine) actor(st *State, userID string) (Actor, error) {
	p, ok := st.Participant(userID)
	if !ok {
		return Actor{}, forbidden("user %s is not a participant of board %s", userID, st.Board.ID)
	}
	return Actor{UserID: p.UserID, Role: p.Role}, nil
}

func (e *Engine) require(st *State, a Actor, op Operation, authorID string) error {
	if !Allowed(a, op, authorID, st.Board.IsLocked) {
		return forbidden("%s may not %s", a.UserID, op)
	}
	return nil
}

// NewBoard builds the initial state of a board created by owner.
func (e *Engine) NewBoard(owner string, req models.CreateBoardRequest) (*State, error) {
	if req.Name == "" {
		return nil, invalid("board name is required")
	}

	policy := req.AccessPolicy
	if policy == "" {
		policy = models.AccessPublic
	}
	if !validPolicy(policy) {
		return nil, invalid("unknown access policy %q", policy)
	}

	board := models.Board{
		ID:                    e.NewID(),
		Name:                  req.Name,
		AccessPolicy:          policy,
		ShowAuthors:           true,
		ShowNotesOfOtherUsers: true,
		AllowStacking:         true,
		CreatedAt:             e.now(),
	}

	if policy == models.AccessByPassphrase {
		if req.Passphrase == "" {
			return nil, invalid("passphrase is required for %s boards", policy)
		}
		hash, err := e.hashPassphrase(req.Passphrase)
		if err != nil {
			return nil, err
		}
		board.PassphraseHash = hash
	}

	st := &State{
		Board: board,
		Participants: []models.Participant{{
			UserID:  owner,
			BoardID: board.ID,
			Role:    models.RoleOwner,
		}},
	}

	for _, c := range req.Columns {
		if _, err := e.insertColumn(st, c); err != nil {
			return nil, err
		}
	}

	return st, nil
}

func validPolicy(p string) bool {
	switch p {
	case models.AccessPublic, models.AccessByPassphrase, models.AccessByInvite:
		return true
	}
	return false
}
