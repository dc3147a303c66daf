// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
)

// renderBoard prints the board as columns of ranked notes, with stacks
// indented under their root and vote totals from the latest session.
func renderBoard(w io.Writer, st *engine.State, now time.Time) {
	b := st.Board
	header := fmt.Sprintf("%s (%s) · %s", b.Name, b.AccessPolicy, plural(len(st.Participants), "participant"))
	if b.TimerEnd != nil {
		header += " · " + timerLabel(*b.TimerEnd, now)
	}
	if b.IsLocked {
		header += " · locked"
	}
	fmt.Fprintln(w, header)

	totals := make(map[string]int)
	if n := len(st.Votings); n > 0 {
		session := st.Votings[n-1]
		for _, t := range engine.Tally(st.Votes, session) {
			totals[t.Note] = t.Total
		}
		fmt.Fprintf(w, "Voting %s: %s cast\n", strings.ToLower(session.Status), plural(sum(totals), "vote"))
	}

	columns := slices.Clone(st.Columns)
	slices.SortFunc(columns, func(a, b models.Column) int { return cmp.Compare(a.Index, b.Index) })

	for _, col := range columns {
		fmt.Fprintf(w, "\n%s\n", col.Name)
		roots := scope(st.Notes, col.ID, "")
		if len(roots) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		for _, n := range roots {
			fmt.Fprintf(w, "  %d. %s%s%s\n", n.Position.Rank+1, n.Text, author(n), votes(totals[n.ID]))
			for _, child := range scope(st.Notes, col.ID, n.ID) {
				fmt.Fprintf(w, "     - %s%s%s\n", child.Text, author(child), votes(totals[child.ID]))
			}
		}
	}
}

// scope returns the notes of one rank scope in rank order.
func scope(notes []models.Note, column, stack string) []models.Note {
	var out []models.Note
	for _, n := range notes {
		if n.Position.Column == column && n.Position.Stack == stack {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b models.Note) int { return cmp.Compare(a.Position.Rank, b.Position.Rank) })
	return out
}

func timerLabel(end, now time.Time) string {
	if !end.After(now) {
		return "timer expired " + humanize.RelTime(end, now, "ago", "")
	}
	return "timer " + humanize.RelTime(now, end, "left", "")
}

// describeEvent summarizes one event for the watch command.
func describeEvent(ev models.Event) string {
	prefix := fmt.Sprintf("#%d %s", ev.Seq, ev.Type)
	switch data := ev.Data.(type) {
	case models.InitPayload:
		return fmt.Sprintf("%s %q: %s, %s", prefix, data.Board.Name, plural(len(data.Columns), "column"), plural(len(data.Notes), "note"))
	case []models.Note:
		return fmt.Sprintf("%s %s", prefix, plural(len(data), "note"))
	case []models.Column:
		return fmt.Sprintf("%s %s", prefix, plural(len(data), "column"))
	case []models.Participant:
		return fmt.Sprintf("%s %s", prefix, plural(len(data), "participant"))
	case []models.Vote:
		return fmt.Sprintf("%s %s", prefix, plural(len(data), "vote"))
	case models.NoteDeleted:
		return fmt.Sprintf("%s %s", prefix, data.Note)
	case models.Participant:
		return fmt.Sprintf("%s %s (%s)", prefix, data.UserID, data.Role)
	case models.VotingSession:
		return fmt.Sprintf("%s limit %d", prefix, data.VoteLimit)
	case models.VotingUpdated:
		return fmt.Sprintf("%s %s", prefix, strings.ToLower(data.Voting.Status))
	case models.JoinRequest:
		return fmt.Sprintf("%s %s %s", prefix, data.UserID, strings.ToLower(data.Status))
	case models.Board:
		return fmt.Sprintf("%s %q", prefix, data.Name)
	case string:
		return fmt.Sprintf("%s %s", prefix, data)
	}
	return prefix
}

func author(n models.Note) string {
	if n.Author == "" {
		return ""
	}
	return " (" + n.Author + ")"
}

func votes(n int) string {
	if n == 0 {
		return ""
	}
	return " [" + plural(n, "vote") + "]"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
