// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package reconciler keeps a client-side replica of a board in step with the
server's event stream.

# Usage

Feed every event from a board channel to Apply, in the order received:

	r := reconciler.New()
	for ev := range events {
		if err := r.Apply(ev); errors.Is(err, reconciler.ErrOutOfSync) {
			// reconnect for a fresh INIT
		}
	}
	st := r.State()

The replica changes only in response to events. A command that the server
rejects produces no event and so leaves the replica unchanged.

# Sequencing

INIT resets the replica and its sequence number. Every later event must
carry the next number. Events at or below the current number are replays
and are skipped. A gap marks the replica out of sync until the next INIT.
BOARD_DELETED is terminal and applies regardless of sequence.

REQUEST_UPDATED events from a join request channel are not part of the
board sequence and are folded into Requests on their own.

# Derived State

Collection events replace the whole collection. NOTE_DELETED carries only
the id, and the replica renumbers the remaining notes with
engine.RemoveNote, the function the server uses. COLUMN_DELETED drops the
column with its notes and votes before the NOTES_SYNC that follows.
*/
package reconciler
