// Package board holds the ordering rules shared by the sprint board and the
// submission pipeline. A board is a set of named columns, each an ordered
// list of card ids. Functions here never touch storage; callers persist the
// returned positions.
package board

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCard   = errors.New("board: card not on board")
	ErrUnknownColumn = errors.New("board: unknown column")
	ErrMismatch      = errors.New("board: ids do not match column contents")
)

// Position is where a card ends up after a change.
type Position struct {
	ID     string
	Column string
	Order  int
}

// Board maps column name to card ids in display order.
type Board map[string][]string

// Locate returns the column and index of id.
func (b Board) Locate(id string) (string, int, bool) {
	for col, ids := range b {
		for i, cur := range ids {
			if cur == id {
				return col, i, true
			}
		}
	}
	return "", -1, false
}

// Move takes id out of its column and inserts it into column to at
// position, clamped to the column bounds. Both affected columns are
// renumbered 0..n-1 and every card in them is returned, so the caller can
// write contiguous orders even if the stored ones had drifted.
func Move(b Board, id, to string, position int) ([]Position, error) {
	if _, ok := b[to]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, to)
	}
	from, idx, ok := b.Locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}

	src := remove(b[from], idx)
	dst := src
	if from != to {
		dst = append([]string(nil), b[to]...)
	}
	dst = insert(dst, id, position)

	var out []Position
	if from != to {
		b[from] = src
		out = append(out, number(from, src)...)
	}
	b[to] = dst
	out = append(out, number(to, dst)...)
	return out, nil
}

// Reorder sets the order of one column. ids must be a permutation of the
// column's current contents.
func Reorder(b Board, column string, ids []string) ([]Position, error) {
	cur, ok := b[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if len(cur) != len(ids) {
		return nil, ErrMismatch
	}
	seen := make(map[string]bool, len(cur))
	for _, id := range cur {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrMismatch, id)
		}
		delete(seen, id)
	}
	b[column] = append([]string(nil), ids...)
	return number(column, b[column]), nil
}

// Append adds ids to the end of column after its current last card.
func Append(b Board, column string, ids ...string) []Position {
	start := len(b[column])
	b[column] = append(b[column], ids...)
	out := make([]Position, 0, len(ids))
	for i, id := range ids {
		out = append(out, Position{ID: id, Column: column, Order: start + i})
	}
	return out
}

// Clamp bounds position to [0, n].
func Clamp(position, n int) int {
	if position < 0 {
		return 0
	}
	if position > n {
		return n
	}
	return position
}

func remove(ids []string, idx int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	return append(out, ids[idx+1:]...)
}

func insert(ids []string, id string, position int) []string {
	position = Clamp(position, len(ids))
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:position]...)
	out = append(out, id)
	return append(out, ids[position:]...)
}

func number(column string, ids []string) []Position {
	out := make([]Position, len(ids))
	for i, id := range ids {
		out[i] = Position{ID: id, Column: column, Order: i}
	}
	return out
}
