// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sequencer

import (
	"slices"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
)

// viewer is what redaction needs to know about a recipient.
type viewer struct {
	userID    string
	moderator bool

	hideAuthors bool
	hideOthers  bool
	anonymous   map[string]bool
}

func newViewer(st *engine.State, userID string) viewer {
	p, _ := st.Participant(userID)
	v := viewer{
		userID:      userID,
		moderator:   p.IsModerator(),
		hideAuthors: !st.Board.ShowAuthors,
		hideOthers:  !st.Board.ShowNotesOfOtherUsers,
	}
	for _, s := range st.Votings {
		if s.IsAnonymous {
			if v.anonymous == nil {
				v.anonymous = make(map[string]bool)
			}
			v.anonymous[s.ID] = true
		}
	}
	return v
}

func (v viewer) redactsNothing() bool {
	return (v.moderator || !v.hideAuthors && !v.hideOthers) && len(v.anonymous) == 0
}

// redact returns ev as v may see it. Payloads are copied before any field
// is cleared; the broadcast original is shared by all recipients.
func (v viewer) redact(ev models.Event) models.Event {
	if v.redactsNothing() {
		return ev
	}

	switch data := ev.Data.(type) {
	case models.InitPayload:
		data.Notes = v.notes(data.Notes)
		data.Votes = v.votes(data.Votes)
		ev.Data = data
	case []models.Note:
		ev.Data = v.notes(data)
	case []models.Vote:
		ev.Data = v.votes(data)
	case models.VotingUpdated:
		data.Notes = v.notes(data.Notes)
		ev.Data = data
	}
	return ev
}

// notes clears what v may not see of other users' notes. Hidden notes keep
// their id and position so ranks stay dense on the receiving side.
func (v viewer) notes(notes []models.Note) []models.Note {
	if v.moderator || !v.hideAuthors && !v.hideOthers {
		return notes
	}
	out := slices.Clone(notes)
	for i := range out {
		if out[i].Author == v.userID {
			continue
		}
		out[i].Author = ""
		if v.hideOthers {
			out[i].Text = ""
		}
	}
	return out
}

// votes hides who voted in anonymous sessions. Voters still see their own
// votes so they can track their remaining allowance.
func (v viewer) votes(votes []models.Vote) []models.Vote {
	if len(v.anonymous) == 0 {
		return votes
	}
	out := slices.Clone(votes)
	for i := range out {
		if v.anonymous[out[i].Voting] && out[i].User != v.userID {
			out[i].User = ""
		}
	}
	return out
}
