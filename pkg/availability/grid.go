package availability

import (
	"slices"
	"time"
)

// grid is a slot grid over [start, end). cells[u][i] points at the first busy
// interval of user u that overlaps slot i, or is nil when the slot is free.
type grid struct {
	start time.Time
	end   time.Time
	slot  time.Duration
	size  int
	cells [][]*BusyInterval
}

func slotCount(start, end time.Time, slot time.Duration) int {
	total := end.Sub(start)
	n := int(total / slot)
	if total%slot != 0 {
		n++
	}
	return n
}

// rangeMinutes is the length of [start, end) in whole minutes, rounded up.
func rangeMinutes(start, end time.Time) int64 {
	total := end.Sub(start)
	n := int64(total / time.Minute)
	if total%time.Minute != 0 {
		n++
	}
	return n
}

func newGrid(start, end time.Time, slot time.Duration, users int) *grid {
	size := slotCount(start, end, slot)
	cells := make([][]*BusyInterval, users)
	for u := range cells {
		cells[u] = make([]*BusyInterval, size)
	}
	return &grid{start: start, end: end, slot: slot, size: size, cells: cells}
}

// bounds returns slot i clipped to the range end.
func (g *grid) bounds(i int) (time.Time, time.Time) {
	s := g.start.Add(time.Duration(i) * g.slot)
	e := s.Add(g.slot)
	if e.After(g.end) {
		e = g.end
	}
	return s, e
}

// mark attributes every slot overlapped by iv to iv unless an earlier interval
// already claimed it. iv must be clipped to the grid range.
func (g *grid) mark(user int, iv *BusyInterval) {
	first := int(iv.Start.Sub(g.start) / g.slot)
	last := int((iv.End.Sub(g.start) + g.slot - 1) / g.slot)
	last = min(last, g.size)
	for i := max(first, 0); i < last; i++ {
		if g.cells[user][i] == nil {
			g.cells[user][i] = iv
		}
	}
}

func (g *grid) free(i int) bool {
	for u := range g.cells {
		if g.cells[u][i] != nil {
			return false
		}
	}
	return true
}

// windows coalesces slots free for every user.
func (g *grid) windows() []Window {
	out := []Window{}
	runStart := -1
	flush := func(endIdx int) {
		if runStart < 0 {
			return
		}
		s, _ := g.bounds(runStart)
		_, e := g.bounds(endIdx - 1)
		out = append(out, Window{Start: s, End: e, DurationMinutes: int(e.Sub(s) / time.Minute)})
		runStart = -1
	}

	for i := range g.size {
		if g.free(i) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(g.size)
	return out
}

// conflicts coalesces each user's consecutive busy slots that share an origin.
// The reported interval is the run clipped to the attributed busy interval.
func (g *grid) conflicts(userIDs []string) []Conflict {
	out := []Conflict{}
	for u, userID := range userIDs {
		var intervals []BusyInterval
		var cur *BusyInterval

		for i := range g.size {
			iv := g.cells[u][i]
			s, e := g.bounds(i)
			if iv == nil {
				cur = nil
				continue
			}
			s, e = later(s, iv.Start), earlier(e, iv.End)
			if cur != nil && cur.sameOrigin(*iv) {
				cur.End = later(cur.End, e)
				continue
			}
			intervals = append(intervals, BusyInterval{
				Start:       s,
				End:         e,
				Source:      iv.Source,
				ReferenceID: iv.ReferenceID,
				Label:       iv.Label,
			})
			cur = &intervals[len(intervals)-1]
		}

		if len(intervals) > 0 {
			out = append(out, Conflict{UserID: userID, Intervals: slices.Clip(intervals)})
		}
	}
	return out
}

// clip limits iv to [start, end). ok is false when nothing is left.
func clip(iv BusyInterval, start, end time.Time) (BusyInterval, bool) {
	iv.Start = later(iv.Start, start)
	iv.End = earlier(iv.End, end)
	return iv, iv.End.After(iv.Start)
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
