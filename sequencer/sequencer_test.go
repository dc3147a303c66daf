// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/store"
)

const owner = "owner"

func newTestEngine() *engine.Engine {
	var n atomic.Int64
	e := engine.New()
	e.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	e.Now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	e.PassphraseCost = bcrypt.MinCost
	return e
}

func newTestHub(t *testing.T, s store.Store, cfg Config) *Hub {
	t.Helper()
	h := NewHub(newTestEngine(), s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(h.Close)
	return h
}

// newTestBoard creates a board with two columns and returns its sequencer.
func newTestBoard(t *testing.T, h *Hub, req models.CreateBoardRequest) *Sequencer {
	t.Helper()

	if req.Name == "" {
		req.Name = "Sprint 12"
	}
	req.Columns = []models.CreateColumnArgs{
		{Name: "Went well", Color: "green"},
		{Name: "To improve", Color: "red"},
	}
	b, err := h.CreateBoard(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	s, err := h.Board(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Failed to load board: %v", err)
	}
	return s
}

func mustConnect(t *testing.T, s *Sequencer, userID string) *Subscription {
	t.Helper()

	out, sub, err := s.Connect(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("Connect %s failed: %v", userID, err)
	}
	if out.State != models.AccessStateReady || sub == nil {
		t.Fatalf("Expected %s to be ready, got %q", userID, out.State)
	}
	if ev := next(t, sub); ev.Type != models.EventInit {
		t.Fatalf("Expected INIT as first event, got %s", ev.Type)
	}
	return sub
}

func mustApply(t *testing.T, s *Sequencer, userID, cmdType string, args any) *engine.Result {
	t.Helper()

	cmd, err := models.NewCommand("", cmdType, args)
	if err != nil {
		t.Fatalf("Failed to build %s: %v", cmdType, err)
	}
	res, err := s.Apply(context.Background(), userID, cmd)
	if err != nil {
		t.Fatalf("%s failed: %v", cmdType, err)
	}
	return res
}

func next(t *testing.T, sub *Subscription) models.Event {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("Expected an event for %s, channel closed", sub.UserID)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for an event for %s", sub.UserID)
	}
	return models.Event{}
}

// drain reads until the channel closes and returns what it saw.
func drain(t *testing.T, sub *Subscription) []models.Event {
	t.Helper()

	var events []models.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("Timed out waiting for %s channel to close", sub.UserID)
		}
	}
}

func columnID(t *testing.T, s *Sequencer, i int) string {
	t.Helper()

	var id string
	err := s.View(context.Background(), func(st *engine.State) error {
		id = st.Columns[i].ID
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	return id
}

func connected(t *testing.T, s *Sequencer, userID string) bool {
	t.Helper()

	var on bool
	err := s.View(context.Background(), func(st *engine.State) error {
		p, _ := st.Participant(userID)
		on = p.Connected
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	return on
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition never held: %s", msg)
}

func TestConnect(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})

	ownerSub := mustConnect(t, s, owner)

	out, sub, err := s.Connect(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if out.Participant == nil || !out.Participant.Connected {
		t.Errorf("Expected outcome with a connected participant, got %+v", out.Participant)
	}

	init := next(t, sub)
	if init.Type != models.EventInit {
		t.Fatalf("Expected INIT, got %s", init.Type)
	}
	payload := init.Data.(models.InitPayload)
	if len(payload.Participants) != 2 {
		t.Fatalf("Expected 2 participants in INIT, got %d", len(payload.Participants))
	}
	for _, p := range payload.Participants {
		if !p.Connected {
			t.Errorf("Expected %s to be connected in INIT", p.UserID)
		}
	}

	// The owner sees alice arrive.
	created := next(t, ownerSub)
	if created.Type != models.EventParticipantCreated {
		t.Errorf("Expected PARTICIPANT_CREATED, got %s", created.Type)
	}
	updated := next(t, ownerSub)
	if updated.Type != models.EventParticipants || updated.Seq != created.Seq+1 {
		t.Errorf("Expected PARTICIPANTS_UPDATED with seq %d, got %s with seq %d", created.Seq+1, updated.Type, updated.Seq)
	}

	mustApply(t, s, owner, models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "pairing"})
	ev := next(t, sub)
	if ev.Type != models.EventNotesUpdated {
		t.Errorf("Expected NOTES_UPDATED, got %s", ev.Type)
	}
	if ev.Seq != init.Seq+1 {
		t.Errorf("Expected seq %d after INIT, got %d", init.Seq+1, ev.Seq)
	}
}

func TestConnectPassphrase(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{AccessPolicy: models.AccessByPassphrase, Passphrase: "retro"})

	tests := []struct {
		name       string
		passphrase string
		wantState  string
	}{
		{"missing", "", models.AccessStatePassphraseRequired},
		{"wrong", "nope", models.AccessStateIncorrectPassphrase},
		{"correct", "retro", models.AccessStateReady},
		{"member without passphrase", "", models.AccessStateReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, sub, err := s.Connect(context.Background(), "bob", tt.passphrase)
			if err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			if out.State != tt.wantState {
				t.Fatalf("Expected state %q, got %q", tt.wantState, out.State)
			}
			if tt.wantState != models.AccessStateReady {
				if sub != nil {
					t.Errorf("Expected no subscription for %q", out.State)
				}
				return
			}
			if ev := next(t, sub); ev.Type != models.EventInit {
				t.Errorf("Expected INIT, got %s", ev.Type)
			}
			if !connected(t, s, "bob") {
				t.Error("Expected bob to be connected")
			}
		})
	}
}

func TestConcurrentMoves(t *testing.T) {
	mem := store.NewMemory()
	h := newTestHub(t, mem, Config{SubscriberBuffer: 256})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	cols := []string{columnID(t, s, 0), columnID(t, s, 1)}

	var notes []string
	for i := range 5 {
		res := mustApply(t, s, owner, models.CmdCreateNote, models.CreateNoteArgs{Column: cols[0], Text: fmt.Sprintf("note %d", i)})
		list := res.Events[0].Data.([]models.Note)
		notes = append(notes, list[len(list)-1].ID)
	}

	sub := mustConnect(t, s, owner)

	const movers = 20
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i := range movers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd, _ := models.NewCommand("", models.CmdMoveNote, models.MoveNoteArgs{
				Note:   notes[i%len(notes)],
				Column: cols[i%2],
				Rank:   i % 3,
			})
			if _, err := s.Apply(context.Background(), owner, cmd); err != nil {
				t.Errorf("Move %d failed: %v", i, err)
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if failed.Load() > 0 {
		t.Fatalf("%d moves failed", failed.Load())
	}

	err := s.View(context.Background(), func(st *engine.State) error {
		if len(st.Notes) != len(notes) {
			t.Errorf("Expected %d notes, got %d", len(notes), len(st.Notes))
		}
		return engine.Verify(st)
	})
	if err != nil {
		t.Fatalf("Expected a consistent board, got %v", err)
	}

	stored, _, err := mem.Load(context.Background(), s.ID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := engine.Verify(stored); err != nil {
		t.Errorf("Expected stored board to be consistent, got %v", err)
	}

	// Sequence numbers have no gaps.
	var last uint64
	timeout := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-sub.Events():
			if last != 0 && ev.Seq != last+1 {
				t.Fatalf("Expected seq %d, got %d", last+1, ev.Seq)
			}
			last = ev.Seq
		case <-timeout:
			done = true
		}
	}
	if last == 0 {
		t.Error("Expected moves to be broadcast")
	}
}

func TestRejectedOperationLeavesState(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	sub := mustConnect(t, s, owner)

	cmd, _ := models.NewCommand("", models.CmdCreateNote, models.CreateNoteArgs{Column: "missing", Text: "x"})
	if _, err := s.Apply(context.Background(), owner, cmd); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	res, err := s.Do(context.Background(), func(st *engine.State) (*engine.Result, error) {
		return &engine.Result{}, nil
	})
	if err != nil || res.Changed() {
		t.Fatalf("Expected unchanged no-op, got %v %v", res, err)
	}

	select {
	case ev := <-sub.Events():
		t.Errorf("Expected no events, got %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCorruptionHaltsBoard(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})

	_, err := s.Do(context.Background(), func(st *engine.State) (*engine.Result, error) {
		st.Columns[1].Index = 0
		return &engine.Result{Dirty: engine.DirtyColumns}, nil
	})
	if !errors.Is(err, engine.ErrCorrupted) {
		t.Fatalf("Expected ErrCorrupted, got %v", err)
	}

	cmd, _ := models.NewCommand("", models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "x"})
	if _, err := s.Apply(context.Background(), owner, cmd); !errors.Is(err, engine.ErrCorrupted) {
		t.Errorf("Expected halted board to reject commands, got %v", err)
	}
}

func TestBanClosesChannels(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	alice := mustConnect(t, s, "alice")

	mustApply(t, s, owner, models.CmdBanParticipant, models.UserArgs{User: "alice"})

	events := drain(t, alice)
	if len(events) != 1 || events[0].Type != models.EventParticipants {
		t.Errorf("Expected the ban broadcast before close, got %v", events)
	}

	out, sub, err := s.Connect(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if out.State != models.AccessStateBanned || sub != nil {
		t.Errorf("Expected banned without subscription, got %q", out.State)
	}
}

func TestWatchRequest(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{AccessPolicy: models.AccessByInvite})

	if _, err := s.WatchRequest(context.Background(), "carol"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound without a request, got %v", err)
	}

	out, sub, err := s.Connect(context.Background(), "carol", "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if out.State != models.AccessStateAwaitingConfirmation || sub != nil {
		t.Fatalf("Expected awaiting_confirmation, got %q", out.State)
	}

	watch, err := s.WatchRequest(context.Background(), "carol")
	if err != nil {
		t.Fatalf("WatchRequest failed: %v", err)
	}
	// Another user's request must not reach carol.
	if _, _, err := s.Connect(context.Background(), "dave", ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	mustApply(t, s, owner, models.CmdAcceptRequest, models.RequestsArgs{Users: []string{"carol"}})

	ev := next(t, watch)
	if ev.Type != models.EventRequestUpdated {
		t.Fatalf("Expected REQUEST_UPDATED, got %s", ev.Type)
	}
	if req := ev.Data.(models.JoinRequest); req.UserID != "carol" || req.Status != models.RequestAccepted {
		t.Errorf("Expected carol accepted, got %+v", req)
	}
	watch.Close()

	mustConnect(t, s, "carol")

	// A resolved request is reported at once.
	late, err := s.WatchRequest(context.Background(), "carol")
	if err != nil {
		t.Fatalf("WatchRequest failed: %v", err)
	}
	if ev := next(t, late); ev.Type != models.EventRequestUpdated {
		t.Errorf("Expected REQUEST_UPDATED, got %s", ev.Type)
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{SubscriberBuffer: 1})
	s := newTestBoard(t, h, models.CreateBoardRequest{})

	_, sub, err := s.Connect(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// INIT fills the buffer.
	mustApply(t, s, owner, models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "x"})

	events := drain(t, sub)
	if len(events) != 1 || events[0].Type != models.EventInit {
		t.Errorf("Expected only INIT before drop, got %v", events)
	}
	eventually(t, func() bool { return !connected(t, s, "alice") }, "alice marked disconnected")
}

func TestCloseMarksDisconnected(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})

	first := mustConnect(t, s, "alice")
	second := mustConnect(t, s, "alice")

	first.Close()
	first.Close()
	drain(t, first)
	if !connected(t, s, "alice") {
		t.Error("Expected alice to stay connected while a channel is open")
	}

	second.Close()
	drain(t, second)
	eventually(t, func() bool { return !connected(t, s, "alice") }, "alice marked disconnected")
}

func TestSnapshotRedaction(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.Join(context.Background(), u, ""); err != nil {
			t.Fatalf("Join %s failed: %v", u, err)
		}
	}

	hide := false
	mustApply(t, s, owner, models.CmdUpdateBoard, models.UpdateBoardArgs{ShowAuthors: &hide})
	res := mustApply(t, s, "alice", models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "pairing"})
	noteID := res.Events[0].Data.([]models.Note)[0].ID

	mustApply(t, s, owner, models.CmdOpenVoting, models.OpenVotingArgs{VoteLimit: 3, IsAnonymous: true})
	mustApply(t, s, "alice", models.CmdCastVote, models.NoteArgs{Note: noteID})
	mustApply(t, s, "bob", models.CmdCastVote, models.NoteArgs{Note: noteID})

	tests := []struct {
		viewer     string
		wantAuthor string
		wantVoters []string
	}{
		{owner, "alice", []string{"", ""}},
		{"alice", "alice", []string{"alice", ""}},
		{"bob", "", []string{"", "bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.viewer, func(t *testing.T) {
			snap, err := s.Snapshot(context.Background(), tt.viewer)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if got := snap.Notes[0].Author; got != tt.wantAuthor {
				t.Errorf("Expected author %q, got %q", tt.wantAuthor, got)
			}
			if len(snap.Votes) != len(tt.wantVoters) {
				t.Fatalf("Expected %d votes, got %d", len(tt.wantVoters), len(snap.Votes))
			}
			for i, want := range tt.wantVoters {
				if snap.Votes[i].User != want {
					t.Errorf("Vote %d: expected user %q, got %q", i, want, snap.Votes[i].User)
				}
			}
		})
	}

	if _, err := s.Snapshot(context.Background(), "mallory"); !errors.Is(err, engine.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for outsiders, got %v", err)
	}
}

func TestHiddenNotesOfOtherUsers(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	alice := mustConnect(t, s, "alice")
	if _, err := s.Join(context.Background(), "bob", ""); err != nil {
		t.Fatalf("Join bob failed: %v", err)
	}

	hide := false
	mustApply(t, s, owner, models.CmdUpdateBoard, models.UpdateBoardArgs{ShowNotesOfOtherUsers: &hide})
	col := columnID(t, s, 0)
	mustApply(t, s, owner, models.CmdCreateNote, models.CreateNoteArgs{Column: col, Text: "owner only"})
	mustApply(t, s, "alice", models.CmdCreateNote, models.CreateNoteArgs{Column: col, Text: "mine"})

	full, err := s.Snapshot(context.Background(), owner)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	byID := make(map[string]models.Note)
	for _, n := range full.Notes {
		if n.Text == "" {
			t.Errorf("Expected the owner to see every note, got %+v", n)
		}
		byID[n.ID] = n
	}

	tests := []struct {
		viewer  string
		visible int
	}{
		{"alice", 1},
		{"bob", 0},
	}

	for _, tt := range tests {
		t.Run(tt.viewer, func(t *testing.T) {
			snap, err := s.Snapshot(context.Background(), tt.viewer)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(snap.Notes) != len(full.Notes) {
				t.Fatalf("Expected %d notes, got %d", len(full.Notes), len(snap.Notes))
			}
			visible := 0
			for _, n := range snap.Notes {
				orig, ok := byID[n.ID]
				if !ok {
					t.Fatalf("Unexpected note %s", n.ID)
				}
				if n.Position != orig.Position {
					t.Errorf("Expected position %+v to survive, got %+v", orig.Position, n.Position)
				}
				switch {
				case orig.Author == tt.viewer:
					visible++
					if n.Text != orig.Text {
						t.Errorf("Expected own note %q, got %q", orig.Text, n.Text)
					}
				case n.Text != "" || n.Author != "":
					t.Errorf("Expected %s not to see %+v", tt.viewer, n)
				}
			}
			if visible != tt.visible {
				t.Errorf("Expected %d visible notes, got %d", tt.visible, visible)
			}
		})
	}

	// Live updates are redacted the same way.
	var last []models.Note
	for _, ev := range drainUntil(t, alice, models.EventNotesUpdated, 2) {
		last = ev.Data.([]models.Note)
	}
	for _, n := range last {
		if n.Author != "alice" && n.Text != "" {
			t.Errorf("Expected alice not to see %q", n.Text)
		}
	}
}

// drainUntil reads events until n of type typ have arrived and returns them.
func drainUntil(t *testing.T, sub *Subscription, typ string, n int) []models.Event {
	t.Helper()

	var seen []models.Event
	for len(seen) < n {
		if ev := next(t, sub); ev.Type == typ {
			seen = append(seen, ev)
		}
	}
	return seen
}

// conflictStore fails commits with ErrConflict while armed.
type conflictStore struct {
	store.Store
	remaining atomic.Int32
	commits   atomic.Int32
}

func (c *conflictStore) Commit(ctx context.Context, st *engine.State, version int64, dirty engine.Dirty) (int64, error) {
	c.commits.Add(1)
	if c.remaining.Add(-1) >= 0 {
		return 0, fmt.Errorf("%w: injected", engine.ErrConflict)
	}
	return c.Store.Commit(ctx, st, version, dirty)
}

func TestConflictRetry(t *testing.T) {
	cs := &conflictStore{Store: store.NewMemory()}
	h := newTestHub(t, cs, Config{})
	s := newTestBoard(t, h, models.CreateBoardRequest{})
	sub := mustConnect(t, s, owner)

	cs.remaining.Store(1)
	mustApply(t, s, owner, models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "retried"})

	if ev := next(t, sub); ev.Type != models.EventInit {
		t.Errorf("Expected INIT resync after reload, got %s", ev.Type)
	}
	if ev := next(t, sub); ev.Type != models.EventNotesUpdated {
		t.Errorf("Expected NOTES_UPDATED, got %s", ev.Type)
	}

	stored, _, err := cs.Load(context.Background(), s.ID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(stored.Notes) != 1 || stored.Notes[0].Text != "retried" {
		t.Errorf("Expected the retried note to be stored, got %+v", stored.Notes)
	}
}

func TestConflictGivesUp(t *testing.T) {
	cs := &conflictStore{Store: store.NewMemory()}
	h := newTestHub(t, cs, Config{MaxRetries: 2})
	s := newTestBoard(t, h, models.CreateBoardRequest{})

	cs.remaining.Store(100)
	cs.commits.Store(0)
	cmd, _ := models.NewCommand("", models.CmdCreateNote, models.CreateNoteArgs{Column: columnID(t, s, 0), Text: "x"})
	if _, err := s.Apply(context.Background(), owner, cmd); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	if got := cs.commits.Load(); got != 3 {
		t.Errorf("Expected 3 commit attempts, got %d", got)
	}
}
