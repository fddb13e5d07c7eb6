package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byItem(ps []Placement[string]) map[string]Placement[string] {
	out := make(map[string]Placement[string], len(ps))
	for _, p := range ps {
		out[p.Item] = p
	}
	return out
}

func TestAssignEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Assign[string](nil))
}

func TestAssignAdjacentStartsNewCluster(t *testing.T) {
	t.Parallel()
	got := byItem(Assign([]Entry[string]{
		{Item: "C", StartMinute: 630, DurationMinutes: 30},
		{Item: "A", StartMinute: 540, DurationMinutes: 60},
		{Item: "B", StartMinute: 570, DurationMinutes: 60},
	}))
	require.Len(t, got, 3)

	assert.Equal(t, 2, got["A"].OverlapCount)
	assert.Equal(t, 2, got["B"].OverlapCount)
	assert.NotEqual(t, got["A"].OverlapIndex, got["B"].OverlapIndex)

	assert.Equal(t, 1, got["C"].OverlapCount)
	assert.Equal(t, 0, got["C"].OverlapIndex)
}

func TestAssignReusesFreedColumn(t *testing.T) {
	t.Parallel()
	// A spans the whole cluster; B and C are back to back and share column 1.
	got := Assign([]Entry[string]{
		{Item: "A", StartMinute: 0, DurationMinutes: 120},
		{Item: "B", StartMinute: 10, DurationMinutes: 30},
		{Item: "C", StartMinute: 40, DurationMinutes: 30},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got[0].Item, got[1].Item, got[2].Item})

	m := byItem(got)
	assert.Equal(t, 0, m["A"].OverlapIndex)
	assert.Equal(t, 1, m["B"].OverlapIndex)
	assert.Equal(t, 1, m["C"].OverlapIndex)
	for _, p := range got {
		assert.Equal(t, 2, p.OverlapCount, p.Item)
	}
}

func TestAssignTransitiveCluster(t *testing.T) {
	t.Parallel()
	// A and C do not overlap but are chained through B.
	m := byItem(Assign([]Entry[string]{
		{Item: "A", StartMinute: 0, DurationMinutes: 60},
		{Item: "B", StartMinute: 30, DurationMinutes: 60},
		{Item: "C", StartMinute: 70, DurationMinutes: 30},
		{Item: "D", StartMinute: 75, DurationMinutes: 10},
	}))
	assert.Equal(t, 0, m["A"].OverlapIndex)
	assert.Equal(t, 1, m["B"].OverlapIndex)
	assert.Equal(t, 0, m["C"].OverlapIndex)
	assert.Equal(t, 2, m["D"].OverlapIndex)
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, 3, m[id].OverlapCount, id)
	}
}

func TestAssignNeverSharesColumnWhenOverlapping(t *testing.T) {
	t.Parallel()
	entries := []Entry[string]{
		{Item: "a", StartMinute: 480, DurationMinutes: 90},
		{Item: "b", StartMinute: 480, DurationMinutes: 30},
		{Item: "c", StartMinute: 500, DurationMinutes: 45},
		{Item: "d", StartMinute: 510, DurationMinutes: 30},
		{Item: "e", StartMinute: 545, DurationMinutes: 60},
		{Item: "f", StartMinute: 900, DurationMinutes: 0},
	}
	got := Assign(entries)
	require.Len(t, got, len(entries))

	for i, p := range got {
		for j, q := range got {
			if i == j || p.OverlapIndex != q.OverlapIndex {
				continue
			}
			overlap := p.StartMinute < q.StartMinute+q.DurationMinutes && q.StartMinute < p.StartMinute+p.DurationMinutes
			assert.False(t, overlap, "%s and %s share column %d", p.Item, q.Item, p.OverlapIndex)
		}
	}
	assert.Equal(t, 1, byItem(got)["f"].OverlapCount)
}
