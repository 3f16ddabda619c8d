package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard() Board {
	return Board{
		"todo":        {"a", "b", "c"},
		"in_progress": {"d"},
		"done":        {},
	}
}

func orders(ps []Position, column string) []string {
	var out []string
	for _, p := range ps {
		if p.Column == column {
			out = append(out, p.ID)
		}
	}
	return out
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		id, to   string
		position int
		todo     []string
		progress []string
	}{
		{"to head of other column", "b", "in_progress", 0, []string{"a", "c"}, []string{"b", "d"}},
		{"to tail of other column", "a", "in_progress", 1, []string{"b", "c"}, []string{"d", "a"}},
		{"position clamped high", "c", "in_progress", 99, []string{"a", "b"}, []string{"d", "c"}},
		{"position clamped low", "d", "todo", -4, []string{"d", "a", "b", "c"}, []string{}},
		{"within column", "a", "todo", 2, []string{"b", "c", "a"}, []string{"d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBoard()
			ps, err := Move(b, tt.id, tt.to, tt.position)
			require.NoError(t, err)
			assert.Equal(t, tt.todo, b["todo"])
			assert.Equal(t, tt.progress, b["in_progress"])

			for _, p := range ps {
				assert.Equal(t, b[p.Column][p.Order], p.ID)
			}
		})
	}
}

func TestMoveRenumbersBothColumns(t *testing.T) {
	b := newBoard()
	ps, err := Move(b, "a", "done", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, orders(ps, "todo"))
	assert.Equal(t, []string{"a"}, orders(ps, "done"))
	assert.Empty(t, orders(ps, "in_progress"))
}

func TestMoveErrors(t *testing.T) {
	b := newBoard()
	_, err := Move(b, "zzz", "todo", 0)
	assert.ErrorIs(t, err, ErrUnknownCard)
	_, err = Move(b, "a", "archived", 0)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestReorder(t *testing.T) {
	b := newBoard()
	ps, err := Reorder(b, "todo", []string{"c", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, b["todo"])
	assert.Equal(t, Position{ID: "c", Column: "todo", Order: 0}, ps[0])

	_, err = Reorder(b, "todo", []string{"c", "a"})
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = Reorder(b, "todo", []string{"c", "a", "x"})
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestAppend(t *testing.T) {
	b := newBoard()
	ps := Append(b, "in_progress", "x", "y")
	assert.Equal(t, []Position{
		{ID: "x", Column: "in_progress", Order: 1},
		{ID: "y", Column: "in_progress", Order: 2},
	}, ps)
	assert.Equal(t, []string{"d", "x", "y"}, b["in_progress"])
}
