// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/danielhkuo/retroboard/models"
)

// sortColumns orders columns by index and renumbers them 0..n-1.
func sortColumns(cols []models.Column) {
	slices.SortStableFunc(cols, func(a, b models.Column) int { return cmp.Compare(a.Index, b.Index) })
	for i := range cols {
		cols[i].Index = i
	}
}

// moveColumn places cols[from] at index to, shifting the others.
func moveColumn(cols []models.Column, from, to int) []models.Column {
	c := cols[from]
	cols = slices.Delete(cols, from, from+1)
	to = max(0, min(to, len(cols)))
	cols = slices.Insert(cols, to, c)
	for i := range cols {
		cols[i].Index = i
	}
	return cols
}

func (e *Engine) insertColumn(st *State, args models.CreateColumnArgs) (models.Column, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return models.Column{}, invalid("column name is required")
	}

	col := models.Column{
		ID:      e.NewID(),
		BoardID: st.Board.ID,
		Name:    name,
		Color:   args.Color,
		Visible: true,
		Index:   len(st.Columns),
	}
	if args.Visible != nil {
		col.Visible = *args.Visible
	}

	sortColumns(st.Columns)
	st.Columns = append(st.Columns, col)
	if args.Index != nil {
		st.Columns = moveColumn(st.Columns, len(st.Columns)-1, *args.Index)
	}
	return col, nil
}

// CreateColumn adds a column, at the end unless an index is given.
func (e *Engine) CreateColumn(st *State, userID string, args models.CreateColumnArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageColumns, ""); err != nil {
		return nil, err
	}
	if _, err := e.insertColumn(st, args); err != nil {
		return nil, err
	}

	r := &Result{}
	r.columnsUpdated(st)
	return r, nil
}

// UpdateColumn changes any of name, colour, visibility and index.
func (e *Engine) UpdateColumn(st *State, userID string, args models.UpdateColumnArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageColumns, ""); err != nil {
		return nil, err
	}
	sortColumns(st.Columns)
	i := st.columnIndex(args.Column)
	if i < 0 {
		return nil, notFound("column %s", args.Column)
	}
	if args.Name != nil && strings.TrimSpace(*args.Name) == "" {
		return nil, invalid("column name is required")
	}

	before := slices.Clone(st.Columns)
	c := &st.Columns[i]
	if args.Name != nil {
		c.Name = strings.TrimSpace(*args.Name)
	}
	if args.Color != nil {
		c.Color = *args.Color
	}
	if args.Visible != nil {
		c.Visible = *args.Visible
	}
	if args.Index != nil {
		st.Columns = moveColumn(st.Columns, i, *args.Index)
	}

	r := &Result{}
	if !slices.Equal(before, st.Columns) {
		r.columnsUpdated(st)
	}
	return r, nil
}

// DeleteColumn removes a column with every note in it and the votes on
// those notes, then closes the gap in column indices.
func (e *Engine) DeleteColumn(st *State, userID string, args models.ColumnArgs) (*Result, error) {
	a, err := e.actor(st, userID)
	if err != nil {
		return nil, err
	}
	if err := e.require(st, a, OpManageColumns, ""); err != nil {
		return nil, err
	}
	i := st.columnIndex(args.Column)
	if i < 0 {
		return nil, notFound("column %s", args.Column)
	}

	st.Columns = slices.Delete(st.Columns, i, i+1)
	sortColumns(st.Columns)

	var removed []string
	st.Notes = slices.DeleteFunc(st.Notes, func(n models.Note) bool {
		if n.Position.Column == args.Column {
			removed = append(removed, n.ID)
			return true
		}
		return false
	})

	r := &Result{}
	r.emit(models.EventColumnDeleted, args.Column, DirtyColumns)
	r.emit(models.EventNotesSync, nonNil(st.Notes), DirtyNotes)
	dropNoteVotes(st, r, removed)
	unshare(st, r, removed)
	return r, nil
}
