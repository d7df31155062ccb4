// Package tracking implements watched-interval bookkeeping for a single video:
// the interval merge engine, the segment recorder fed by playback position
// updates, the progress aggregator and per-session playback statistics.
package tracking

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Interval is a half-open span [Start, End) of media time in seconds.
// It is valid only when 0 <= Start < End and both bounds are finite.
type Interval struct {
	Start float64
	End   float64
}

// Valid reports whether the interval can take part in a merge.
func (iv Interval) Valid() bool {
	if math.IsNaN(iv.Start) || math.IsNaN(iv.End) || math.IsInf(iv.Start, 0) || math.IsInf(iv.End, 0) {
		return false
	}
	return iv.Start >= 0 && iv.Start < iv.End
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Contains reports whether t falls within the interval, inclusive at both ends.
func (iv Interval) Contains(t float64) bool {
	return t >= iv.Start && t <= iv.End
}

// String formats the interval as [m:ss-m:ss].
func (iv Interval) String() string {
	return fmt.Sprintf("[%s-%s]", FormatClock(iv.Start), FormatClock(iv.End))
}

// MarshalJSON encodes the interval as a two element array.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{iv.Start, iv.End})
}

// UnmarshalJSON decodes a [start, end] pair. Anything else is an error;
// callers that want lenient decoding use DecodeWatchedSet.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("interval must be a [start, end] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval must have exactly 2 elements, got %d", len(pair))
	}
	iv.Start, iv.End = pair[0], pair[1]
	return nil
}

// NewCandidate builds the interval credited for a playback step from prev to cur.
// The bounds are rounded outward to whole seconds.
func NewCandidate(prev, cur float64) Interval {
	return Interval{Start: math.Floor(prev), End: math.Ceil(cur)}
}

// WatchedSet is a sorted list of pairwise disjoint, non-touching intervals.
// Values produced by MergeAll always satisfy that invariant.
type WatchedSet []Interval

// MergeAll normalizes an arbitrary list of intervals into a WatchedSet.
// Invalid intervals are dropped, the rest are sorted by start (ties by end)
// and any interval starting at or before the end of the running one is folded
// into it, so touching intervals coalesce as well.
func MergeAll(intervals []Interval) WatchedSet {
	valid := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return WatchedSet{}
	}

	slices.SortFunc(valid, func(a, b Interval) int {
		if c := cmpFloat(a.Start, b.Start); c != 0 {
			return c
		}
		return cmpFloat(a.End, b.End)
	})

	merged := make(WatchedSet, 0, len(valid))
	open := valid[0]
	for _, cur := range valid[1:] {
		if cur.Start <= open.End {
			open.End = max(open.End, cur.End)
			continue
		}
		merged = append(merged, open)
		open = cur
	}
	return append(merged, open)
}

// Merge folds a single candidate into an existing set.
func Merge(existing WatchedSet, candidate Interval) WatchedSet {
	all := make([]Interval, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, candidate)
	return MergeAll(all)
}

// TotalSeconds returns the total covered media time.
func (ws WatchedSet) TotalSeconds() float64 {
	var total float64
	for _, iv := range ws {
		total += iv.Length()
	}
	return total
}

// Contains reports whether media time t has been watched.
func (ws WatchedSet) Contains(t float64) bool {
	for _, iv := range ws {
		if t < iv.Start {
			return false
		}
		if iv.Contains(t) {
			return true
		}
	}
	return false
}

// Normalized reports whether the set already satisfies the WatchedSet invariant.
func (ws WatchedSet) Normalized() bool {
	for i, iv := range ws {
		if !iv.Valid() {
			return false
		}
		if i > 0 && iv.Start <= ws[i-1].End {
			return false
		}
	}
	return true
}

// Gaps returns the unwatched spans between 0 and duration.
func (ws WatchedSet) Gaps(duration float64) []Interval {
	if duration <= 0 || math.IsNaN(duration) {
		return nil
	}
	var gaps []Interval
	cursor := 0.0
	for _, iv := range ws {
		if iv.Start >= duration {
			break
		}
		if iv.Start > cursor {
			gaps = append(gaps, Interval{Start: cursor, End: iv.Start})
		}
		cursor = max(cursor, iv.End)
	}
	if cursor < duration {
		gaps = append(gaps, Interval{Start: cursor, End: duration})
	}
	return gaps
}

// Clone returns an independent copy of the set.
func (ws WatchedSet) Clone() WatchedSet {
	if ws == nil {
		return WatchedSet{}
	}
	return slices.Clone(ws)
}

// MarshalJSON always encodes an empty set as [] rather than null.
func (ws WatchedSet) MarshalJSON() ([]byte, error) {
	if ws == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Interval(ws))
}

// DecodeWatchedSet parses a JSON array of pairs leniently. Elements that are
// not two-number arrays are skipped and counted in dropped. The result is
// passed through MergeAll.
func DecodeWatchedSet(data []byte) (set WatchedSet, dropped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("watched set must be a JSON array: %w", err)
	}
	intervals := make([]Interval, 0, len(raw))
	for _, r := range raw {
		var iv Interval
		if err := json.Unmarshal(r, &iv); err != nil || !iv.Valid() {
			dropped++
			continue
		}
		intervals = append(intervals, iv)
	}
	return MergeAll(intervals), dropped, nil
}

// FromPairs converts loosely typed [start, end] pairs into intervals.
// Pairs of the wrong arity are skipped and counted in dropped; invalid spans
// are kept so that MergeAll can discard them.
func FromPairs(pairs [][]float64) (intervals []Interval, dropped int) {
	intervals = make([]Interval, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			dropped++
			continue
		}
		intervals = append(intervals, Interval{Start: p[0], End: p[1]})
	}
	return intervals, dropped
}

// Pairs returns the set as [start, end] pairs.
func (ws WatchedSet) Pairs() [][]float64 {
	out := make([][]float64, 0, len(ws))
	for _, iv := range ws {
		out = append(out, []float64{iv.Start, iv.End})
	}
	return out
}

// FormatClock formats seconds as m:ss.
func FormatClock(seconds float64) string {
	s := clockSeconds(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// FormatClockDetailed formats seconds as h:mm:ss, falling back to m:ss under an hour.
func FormatClockDetailed(seconds float64) string {
	s := clockSeconds(seconds)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func clockSeconds(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}
	return int64(math.Floor(seconds))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
