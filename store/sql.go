// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/retroboard/db"
	"github.com/danielhkuo/retroboard/engine"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(db.DriverSQLite, sqlx.QUESTION)
}

// SQL stores boards in SQLite or PostgreSQL. Each commit rewrites the
// dirty collections of one board inside a transaction guarded by the
// board's version column.
type SQL struct {
	db *sqlx.DB
}

// OpenSQL connects to the database and applies the schema. For SQLite the
// foreign_keys pragma is switched on so board deletion cascades, and an
// in-memory database is pinned to a single connection.
func OpenSQL(driver, dsn string) (*SQL, error) {
	if driver == db.DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == db.DriverSQLite && strings.Contains(dsn, ":memory:") {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.CreateSchema(conn.DB, driver); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQL{db: conn}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// DB exposes the underlying handle for health checks.
func (s *SQL) DB() *sql.DB {
	return s.db.DB
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQL) Create(ctx context.Context, st *engine.State) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		row := toBoardRow(st.Board)
		row.Version = 1
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO boards (id, name, access_policy, passphrase_hash, show_authors,
				show_notes_of_other_users, allow_stacking, is_locked, timer_start, timer_end,
				shared_note, version, created_at)
			VALUES (:id, :name, :access_policy, :passphrase_hash, :show_authors,
				:show_notes_of_other_users, :allow_stacking, :is_locked, :timer_start, :timer_end,
				:shared_note, :version, :created_at)
		`, row)
		if err != nil {
			return fmt.Errorf("failed to insert board: %w", err)
		}
		return writeCollections(ctx, tx, st, engine.DirtyAll&^engine.DirtyBoard)
	})
}

func (s *SQL) Load(ctx context.Context, boardID string) (*engine.State, int64, error) {
	var b boardRow
	err := s.db.GetContext(ctx, &b, s.db.Rebind(`SELECT * FROM boards WHERE id = ?`), boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, boardNotFound(boardID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load board: %w", err)
	}

	st := &engine.State{Board: b.model()}

	var columns []columnRow
	if err := s.selectBoard(ctx, &columns, `SELECT id, board_id, name, color, visible, col_index FROM board_columns WHERE board_id = ? ORDER BY col_index`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range columns {
		st.Columns = append(st.Columns, r.model())
	}

	var notes []noteRow
	if err := s.selectBoard(ctx, &notes, `SELECT * FROM notes WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range notes {
		st.Notes = append(st.Notes, r.model())
	}

	var participants []participantRow
	if err := s.selectBoard(ctx, &participants, `SELECT * FROM participants WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range participants {
		st.Participants = append(st.Participants, r.model())
	}

	var votings []votingRow
	if err := s.selectBoard(ctx, &votings, `SELECT * FROM voting_sessions WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range votings {
		v, err := r.model()
		if err != nil {
			return nil, 0, err
		}
		st.Votings = append(st.Votings, v)
	}

	var votes []voteRow
	if err := s.selectBoard(ctx, &votes, `SELECT * FROM votes WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range votes {
		st.Votes = append(st.Votes, r.model())
	}

	var requests []requestRow
	if err := s.selectBoard(ctx, &requests, `SELECT * FROM join_requests WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range requests {
		st.Requests = append(st.Requests, r.model())
	}

	var bans []banRow
	if err := s.selectBoard(ctx, &bans, `SELECT * FROM bans WHERE board_id = ? ORDER BY ord`, boardID); err != nil {
		return nil, 0, err
	}
	for _, r := range bans {
		st.Bans = append(st.Bans, r.model())
	}

	return st, b.Version, nil
}

func (s *SQL) selectBoard(ctx context.Context, dest any, query, boardID string) error {
	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(query), boardID); err != nil {
		return fmt.Errorf("failed to load board %s: %w", boardID, err)
	}
	return nil
}

func (s *SQL) Commit(ctx context.Context, st *engine.State, version int64, dirty engine.Dirty) (int64, error) {
	boardID := st.Board.ID
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE boards SET version = version + 1 WHERE id = ? AND version = ?`), boardID, version)
		if err != nil {
			return fmt.Errorf("failed to bump board version: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to bump board version: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM boards WHERE id = ?`), boardID)
			if err != nil {
				return fmt.Errorf("failed to check board: %w", err)
			}
			if exists == 0 {
				return boardGone(boardID)
			}
			return versionConflict(boardID, version)
		}

		if dirty&engine.DirtyBoard != 0 {
			_, err := tx.NamedExecContext(ctx, `
				UPDATE boards SET name = :name, access_policy = :access_policy,
					passphrase_hash = :passphrase_hash, show_authors = :show_authors,
					show_notes_of_other_users = :show_notes_of_other_users,
					allow_stacking = :allow_stacking, is_locked = :is_locked,
					timer_start = :timer_start, timer_end = :timer_end, shared_note = :shared_note
				WHERE id = :id
			`, toBoardRow(st.Board))
			if err != nil {
				return fmt.Errorf("failed to update board: %w", err)
			}
		}
		return writeCollections(ctx, tx, st, dirty)
	})
	if err != nil {
		return 0, err
	}
	return version + 1, nil
}

func (s *SQL) Delete(ctx context.Context, boardID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM boards WHERE id = ?`), boardID)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	if n == 0 {
		return boardNotFound(boardID)
	}
	return nil
}

// writeCollections replaces every dirty child collection of the board.
func writeCollections(ctx context.Context, tx *sqlx.Tx, st *engine.State, dirty engine.Dirty) error {
	boardID := st.Board.ID

	if dirty&engine.DirtyColumns != 0 {
		rows := make([]any, len(st.Columns))
		for i, c := range st.Columns {
			rows[i] = columnRow(c)
		}
		if err := replace(ctx, tx, "board_columns", boardID, rows, `
			INSERT INTO board_columns (id, board_id, name, color, visible, col_index)
			VALUES (:id, :board_id, :name, :color, :visible, :col_index)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyNotes != 0 {
		rows := make([]any, len(st.Notes))
		for i, n := range st.Notes {
			rows[i] = toNoteRow(n, i)
		}
		if err := replace(ctx, tx, "notes", boardID, rows, `
			INSERT INTO notes (id, board_id, author, text, position_column, position_stack, position_rank, ord, created_at)
			VALUES (:id, :board_id, :author, :text, :position_column, :position_stack, :position_rank, :ord, :created_at)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyParticipants != 0 {
		rows := make([]any, len(st.Participants))
		for i, p := range st.Participants {
			rows[i] = toParticipantRow(p, i)
		}
		if err := replace(ctx, tx, "participants", boardID, rows, `
			INSERT INTO participants (board_id, user_id, role, connected, ready, raised_hand, show_hidden_columns, ord)
			VALUES (:board_id, :user_id, :role, :connected, :ready, :raised_hand, :show_hidden_columns, :ord)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyVotings != 0 {
		rows := make([]any, len(st.Votings))
		for i, v := range st.Votings {
			row, err := toVotingRow(v, i)
			if err != nil {
				return err
			}
			rows[i] = row
		}
		if err := replace(ctx, tx, "voting_sessions", boardID, rows, `
			INSERT INTO voting_sessions (id, board_id, vote_limit, allow_multiple_votes, is_anonymous, status, results, ord, created_at)
			VALUES (:id, :board_id, :vote_limit, :allow_multiple_votes, :is_anonymous, :status, :results, :ord, :created_at)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyVotes != 0 {
		rows := make([]any, len(st.Votes))
		for i, v := range st.Votes {
			rows[i] = voteRow{BoardID: boardID, Ord: i, Note: v.Note, User: v.User, Voting: v.Voting, CreatedAt: v.CreatedAt}
		}
		if err := replace(ctx, tx, "votes", boardID, rows, `
			INSERT INTO votes (board_id, ord, note_id, user_id, voting_id, created_at)
			VALUES (:board_id, :ord, :note_id, :user_id, :voting_id, :created_at)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyRequests != 0 {
		rows := make([]any, len(st.Requests))
		for i, r := range st.Requests {
			rows[i] = requestRow{BoardID: boardID, UserID: r.UserID, Status: r.Status, Ord: i, CreatedAt: r.CreatedAt}
		}
		if err := replace(ctx, tx, "join_requests", boardID, rows, `
			INSERT INTO join_requests (board_id, user_id, status, ord, created_at)
			VALUES (:board_id, :user_id, :status, :ord, :created_at)`); err != nil {
			return err
		}
	}

	if dirty&engine.DirtyBans != 0 {
		rows := make([]any, len(st.Bans))
		for i, b := range st.Bans {
			rows[i] = banRow{BoardID: boardID, UserID: b.UserID, Ord: i, CreatedAt: b.CreatedAt}
		}
		if err := replace(ctx, tx, "bans", boardID, rows, `
			INSERT INTO bans (board_id, user_id, ord, created_at)
			VALUES (:board_id, :user_id, :ord, :created_at)`); err != nil {
			return err
		}
	}

	return nil
}

func replace(ctx context.Context, tx *sqlx.Tx, table, boardID string, rows []any, insert string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE board_id = ?`), boardID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*SQL)(nil)
	_ Store = (*Memory)(nil)
)
