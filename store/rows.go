// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielhkuo/retroboard/models"
)

// Row types mirror the tables in db/migrations. Slice order is kept in the
// ord column.

type boardRow struct {
	ID                    string       `db:"id"`
	Name                  string       `db:"name"`
	AccessPolicy          string       `db:"access_policy"`
	PassphraseHash        string       `db:"passphrase_hash"`
	ShowAuthors           bool         `db:"show_authors"`
	ShowNotesOfOtherUsers bool         `db:"show_notes_of_other_users"`
	AllowStacking         bool         `db:"allow_stacking"`
	IsLocked              bool         `db:"is_locked"`
	TimerStart            sql.NullTime `db:"timer_start"`
	TimerEnd              sql.NullTime `db:"timer_end"`
	SharedNote            string       `db:"shared_note"`
	Version               int64        `db:"version"`
	CreatedAt             time.Time    `db:"created_at"`
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toBoardRow(b models.Board) boardRow {
	return boardRow{
		ID:                    b.ID,
		Name:                  b.Name,
		AccessPolicy:          b.AccessPolicy,
		PassphraseHash:        b.PassphraseHash,
		ShowAuthors:           b.ShowAuthors,
		ShowNotesOfOtherUsers: b.ShowNotesOfOtherUsers,
		AllowStacking:         b.AllowStacking,
		IsLocked:              b.IsLocked,
		TimerStart:            nullTime(b.TimerStart),
		TimerEnd:              nullTime(b.TimerEnd),
		SharedNote:            b.SharedNote,
		CreatedAt:             b.CreatedAt,
	}
}

func (r boardRow) model() models.Board {
	return models.Board{
		ID:                    r.ID,
		Name:                  r.Name,
		AccessPolicy:          r.AccessPolicy,
		PassphraseHash:        r.PassphraseHash,
		ShowAuthors:           r.ShowAuthors,
		ShowNotesOfOtherUsers: r.ShowNotesOfOtherUsers,
		AllowStacking:         r.AllowStacking,
		IsLocked:              r.IsLocked,
		TimerStart:            timePtr(r.TimerStart),
		TimerEnd:              timePtr(r.TimerEnd),
		SharedNote:            r.SharedNote,
		CreatedAt:             r.CreatedAt.UTC(),
	}
}

type columnRow struct {
	ID      string `db:"id"`
	BoardID string `db:"board_id"`
	Name    string `db:"name"`
	Color   string `db:"color"`
	Visible bool   `db:"visible"`
	Index   int    `db:"col_index"`
}

func (r columnRow) model() models.Column {
	return models.Column(r)
}

type noteRow struct {
	ID        string    `db:"id"`
	BoardID   string    `db:"board_id"`
	Author    string    `db:"author"`
	Text      string    `db:"text"`
	Column    string    `db:"position_column"`
	Stack     string    `db:"position_stack"`
	Rank      int       `db:"position_rank"`
	Ord       int       `db:"ord"`
	CreatedAt time.Time `db:"created_at"`
}

func toNoteRow(n models.Note, ord int) noteRow {
	return noteRow{
		ID:        n.ID,
		BoardID:   n.BoardID,
		Author:    n.Author,
		Text:      n.Text,
		Column:    n.Position.Column,
		Stack:     n.Position.Stack,
		Rank:      n.Position.Rank,
		Ord:       ord,
		CreatedAt: n.CreatedAt,
	}
}

func (r noteRow) model() models.Note {
	return models.Note{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Author:    r.Author,
		Text:      r.Text,
		Position:  models.Position{Column: r.Column, Stack: r.Stack, Rank: r.Rank},
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type participantRow struct {
	BoardID           string `db:"board_id"`
	UserID            string `db:"user_id"`
	Role              string `db:"role"`
	Connected         bool   `db:"connected"`
	Ready             bool   `db:"ready"`
	RaisedHand        bool   `db:"raised_hand"`
	ShowHiddenColumns bool   `db:"show_hidden_columns"`
	Ord               int    `db:"ord"`
}

func toParticipantRow(p models.Participant, ord int) participantRow {
	return participantRow{
		BoardID:           p.BoardID,
		UserID:            p.UserID,
		Role:              p.Role,
		Connected:         p.Connected,
		Ready:             p.Ready,
		RaisedHand:        p.RaisedHand,
		ShowHiddenColumns: p.ShowHiddenColumns,
		Ord:               ord,
	}
}

func (r participantRow) model() models.Participant {
	return models.Participant{
		UserID:            r.UserID,
		BoardID:           r.BoardID,
		Role:              r.Role,
		Connected:         r.Connected,
		Ready:             r.Ready,
		RaisedHand:        r.RaisedHand,
		ShowHiddenColumns: r.ShowHiddenColumns,
	}
}

type votingRow struct {
	ID                 string    `db:"id"`
	BoardID            string    `db:"board_id"`
	VoteLimit          int       `db:"vote_limit"`
	AllowMultipleVotes bool      `db:"allow_multiple_votes"`
	IsAnonymous        bool      `db:"is_anonymous"`
	Status             string    `db:"status"`
	Results            string    `db:"results"`
	Ord                int       `db:"ord"`
	CreatedAt          time.Time `db:"created_at"`
}

func toVotingRow(v models.VotingSession, ord int) (votingRow, error) {
	results := v.Results
	if results == nil {
		results = []models.NoteTally{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return votingRow{}, fmt.Errorf("failed to encode results of voting %s: %w", v.ID, err)
	}
	return votingRow{
		ID:                 v.ID,
		BoardID:            v.BoardID,
		VoteLimit:          v.VoteLimit,
		AllowMultipleVotes: v.AllowMultipleVotes,
		IsAnonymous:        v.IsAnonymous,
		Status:             v.Status,
		Results:            string(raw),
		Ord:                ord,
		CreatedAt:          v.CreatedAt,
	}, nil
}

func (r votingRow) model() (models.VotingSession, error) {
	v := models.VotingSession{
		ID:                 r.ID,
		BoardID:            r.BoardID,
		VoteLimit:          r.VoteLimit,
		AllowMultipleVotes: r.AllowMultipleVotes,
		IsAnonymous:        r.IsAnonymous,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Results), &v.Results); err != nil {
		return v, fmt.Errorf("failed to decode results of voting %s: %w", r.ID, err)
	}
	if len(v.Results) == 0 {
		v.Results = nil
	}
	return v, nil
}

type voteRow struct {
	BoardID   string    `db:"board_id"`
	Ord       int       `db:"ord"`
	Note      string    `db:"note_id"`
	User      string    `db:"user_id"`
	Voting    string    `db:"voting_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r voteRow) model() models.Vote {
	return models.Vote{
		BoardID:   r.BoardID,
		Note:      r.Note,
		User:      r.User,
		Voting:    r.Voting,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type requestRow struct {
	BoardID   string    `db:"board_id"`
	UserID    string    `db:"user_id"`
	Status    string    `db:"status"`
	Ord       int       `db:"ord"`
	CreatedAt time.Time `db:"created_at"`
}

func (r requestRow) model() models.JoinRequest {
	return models.JoinRequest{
		UserID:    r.UserID,
		BoardID:   r.BoardID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type banRow struct {
	BoardID   string    `db:"board_id"`
	UserID    string    `db:"user_id"`
	Ord       int       `db:"ord"`
	CreatedAt time.Time `db:"created_at"`
}

func (r banRow) model() models.Ban {
	return models.Ban{UserID: r.UserID, BoardID: r.BoardID, CreatedAt: r.CreatedAt.UTC()}
}
