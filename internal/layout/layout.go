// Package layout assigns side-by-side columns to overlapping timed items so
// a calendar can render concurrent entries without collision.
package layout

import "slices"

// Entry is one timed item in minutes of its day.
type Entry[T any] struct {
	Item            T
	StartMinute     int
	DurationMinutes int
}

func (e Entry[T]) EndMinute() int { return e.StartMinute + e.DurationMinutes }

// Placement is an Entry plus its column. OverlapCount is the number of
// columns opened in the entry's cluster and is shared by the whole cluster.
type Placement[T any] struct {
	Item            T   `json:"item"`
	StartMinute     int `json:"startMinute"`
	DurationMinutes int `json:"durationMinutes"`
	OverlapIndex    int `json:"overlapIndex"`
	OverlapCount    int `json:"overlapCount"`
}

// Assign clusters transitively overlapping entries and greedily packs each
// cluster into the lowest free column. An entry starting exactly when
// another ends does not overlap it. Output follows (start, end) order.
func Assign[T any](entries []Entry[T]) []Placement[T] {
	if len(entries) == 0 {
		return nil
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry[T]) int {
		if a.StartMinute != b.StartMinute {
			return a.StartMinute - b.StartMinute
		}
		return a.EndMinute() - b.EndMinute()
	})

	out := make([]Placement[T], 0, len(sorted))
	clusterStart := 0
	clusterEnd := sorted[0].EndMinute()
	for i := 1; i < len(sorted); i++ {
		e := sorted[i]
		if e.StartMinute < clusterEnd {
			clusterEnd = max(clusterEnd, e.EndMinute())
			continue
		}
		out = appendCluster(out, sorted[clusterStart:i])
		clusterStart = i
		clusterEnd = e.EndMinute()
	}
	return appendCluster(out, sorted[clusterStart:])
}

func appendCluster[T any](out []Placement[T], cluster []Entry[T]) []Placement[T] {
	var columnEnds []int
	first := len(out)
	for _, e := range cluster {
		col := slices.IndexFunc(columnEnds, func(end int) bool { return end <= e.StartMinute })
		if col < 0 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, e.EndMinute())
		} else {
			columnEnds[col] = e.EndMinute()
		}
		out = append(out, Placement[T]{
			Item:            e.Item,
			StartMinute:     e.StartMinute,
			DurationMinutes: e.DurationMinutes,
			OverlapIndex:    col,
		})
	}
	for i := first; i < len(out); i++ {
		out[i].OverlapCount = len(columnEnds)
	}
	return out
}
