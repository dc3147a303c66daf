// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine holds the board rules: admission, note ordering, columns,
voting and moderation. It has no I/O and no locking.

# Usage

Every operation takes a *State and the calling user, mutates the state in
place and returns a *Result. The caller owns the state; the sequencer runs
operations on a Clone so a rejected or corrupt operation leaves the live
state untouched:

	next := st.Clone()
	res, err := eng.Apply(next, userID, cmd)
	if err != nil {
		return err // st unchanged
	}
	if err := engine.Verify(next); err != nil {
		return err // wraps ErrCorrupted
	}
	st = next

# Ordering

A note's Position is {Column, Stack, Rank}. Standalone notes of a column
form one rank scope and the children of a stack root form another. Ranks in
a scope are always 0..n-1. Stacks are one level deep: stacking onto a child
targets the child's root, and stacking a root moves its children along.

RemoveNote is exported so the client reconciler renumbers deletions the same
way the server does.

# Voting

At most one session is OPEN per board. CastVote enforces the session's
VoteLimit per user and, unless AllowMultipleVotes is set, one vote per note.
CloseVoting freezes the Tally into the session; AbortVoting discards the
session's votes.

# Errors

Rejections wrap one of:

	ErrNotFound          target does not exist
	ErrForbidden         caller lacks the capability
	ErrInvalidOperation  malformed or out-of-state request
	ErrLimitExceeded     vote limit or per-note cap reached
	ErrConflict          concurrent writer committed first
	ErrBoardGone         board was deleted
	ErrCorrupted         an invariant check failed

Kind maps an error to its wire name.
*/
package engine
