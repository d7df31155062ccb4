package tracking

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iv(start, end float64) Interval {
	return Interval{Start: start, End: end}
}

func TestMergeAll(t *testing.T) {
	tests := []struct {
		name  string
		input []Interval
		want  WatchedSet
	}{
		{
			name:  "empty",
			input: nil,
			want:  WatchedSet{},
		},
		{
			name:  "overlapping pair with disjoint tail",
			input: []Interval{iv(2, 3), iv(2.5, 4), iv(10, 12)},
			want:  WatchedSet{iv(2, 4), iv(10, 12)},
		},
		{
			name:  "adjacent intervals coalesce",
			input: []Interval{iv(0, 5), iv(5, 10)},
			want:  WatchedSet{iv(0, 10)},
		},
		{
			name:  "unsorted input",
			input: []Interval{iv(20, 25), iv(0, 3), iv(1, 2)},
			want:  WatchedSet{iv(0, 3), iv(20, 25)},
		},
		{
			name:  "degenerate and reversed intervals dropped",
			input: []Interval{iv(5, 3), iv(1, 2), iv(2, 4), iv(7, 7)},
			want:  WatchedSet{iv(1, 4)},
		},
		{
			name:  "non-finite and negative dropped",
			input: []Interval{iv(math.NaN(), 3), iv(0, math.Inf(1)), iv(-2, 1), iv(8, 9)},
			want:  WatchedSet{iv(8, 9)},
		},
		{
			name:  "contained interval absorbed",
			input: []Interval{iv(0, 100), iv(10, 20), iv(99, 100)},
			want:  WatchedSet{iv(0, 100)},
		},
		{
			name:  "same start keeps longest",
			input: []Interval{iv(3, 4), iv(3, 9), iv(3, 5)},
			want:  WatchedSet{iv(3, 9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeAll(tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Normalized())
		})
	}
}

func TestMergeAll_TotalOfExample(t *testing.T) {
	got := MergeAll([]Interval{iv(2, 3), iv(2.5, 4), iv(10, 12)})
	assert.InDelta(t, 4.0, got.TotalSeconds(), 1e-9)
}

func TestMergeAll_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		input := randomIntervals(rng, 20)
		once := MergeAll(input)
		twice := MergeAll(once)
		require.Equal(t, once, twice)
	}
}

func TestMergeAll_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for range 200 {
		input := randomIntervals(rng, 15)
		shuffled := append([]Interval(nil), input...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		require.Equal(t, MergeAll(input), MergeAll(shuffled))
	}
}

func TestMergeAll_CoverageConservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for range 200 {
		input := randomIntervals(rng, 10)
		merged := MergeAll(input)

		var rawTotal float64
		for _, in := range input {
			if in.Valid() {
				rawTotal += in.Length()
			}
		}
		require.LessOrEqual(t, merged.TotalSeconds(), rawTotal+1e-9)

		// Every covered point of the input is covered by the output.
		for _, in := range input {
			if !in.Valid() {
				continue
			}
			require.True(t, merged.Contains(in.Start))
			require.True(t, merged.Contains((in.Start+in.End)/2))
			require.True(t, merged.Contains(in.End))
		}
	}
}

func TestMerge_Candidate(t *testing.T) {
	set := WatchedSet{iv(0, 5), iv(10, 15)}

	got := Merge(set, iv(5, 10))
	assert.Equal(t, WatchedSet{iv(0, 15)}, got)
	// Input is left untouched.
	assert.Equal(t, WatchedSet{iv(0, 5), iv(10, 15)}, set)

	got = Merge(set, iv(20, 10))
	assert.Equal(t, set, got)
}

func TestNewCandidate_RoundsOutward(t *testing.T) {
	assert.Equal(t, iv(10, 12), NewCandidate(10.4, 11.2))
	assert.Equal(t, iv(3, 4), NewCandidate(3, 4))
}

func TestWatchedSet_Contains(t *testing.T) {
	set := WatchedSet{iv(0, 5), iv(10, 15)}

	assert.True(t, set.Contains(0))
	assert.True(t, set.Contains(5))
	assert.True(t, set.Contains(12.5))
	assert.False(t, set.Contains(7))
	assert.False(t, set.Contains(16))
}

func TestWatchedSet_Normalized(t *testing.T) {
	assert.True(t, WatchedSet{}.Normalized())
	assert.True(t, WatchedSet{iv(0, 1), iv(2, 3)}.Normalized())
	assert.False(t, WatchedSet{iv(0, 2), iv(2, 3)}.Normalized())
	assert.False(t, WatchedSet{iv(2, 3), iv(0, 1)}.Normalized())
	assert.False(t, WatchedSet{iv(3, 3)}.Normalized())
}

func TestWatchedSet_Gaps(t *testing.T) {
	set := WatchedSet{iv(5, 10), iv(20, 30)}

	assert.Equal(t, []Interval{iv(0, 5), iv(10, 20), iv(30, 40)}, set.Gaps(40))
	assert.Equal(t, []Interval{iv(0, 5), iv(10, 20)}, set.Gaps(25))
	assert.Nil(t, set.Gaps(0))
	assert.Equal(t, []Interval{iv(0, 60)}, WatchedSet{}.Gaps(60))
}

func TestWatchedSet_JSON(t *testing.T) {
	set := WatchedSet{iv(1, 4), iv(10, 12.5)}

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,4],[10,12.5]]`, string(data))

	var decoded WatchedSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, set, decoded)

	var empty WatchedSet
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestInterval_UnmarshalJSON_RejectsWrongArity(t *testing.T) {
	var in Interval
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"start":1}`), &in))
}

func TestDecodeWatchedSet(t *testing.T) {
	set, dropped, err := DecodeWatchedSet([]byte(`[[5,3],[1,2],[2,4],[7],"x",[9,10]]`))
	require.NoError(t, err)
	assert.Equal(t, WatchedSet{iv(1, 4), iv(9, 10)}, set)
	assert.Equal(t, 3, dropped)

	_, _, err = DecodeWatchedSet([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestFromPairs(t *testing.T) {
	intervals, dropped := FromPairs([][]float64{{5, 3}, {1, 2}, {2, 4}, {1}, {}})
	assert.Equal(t, 2, dropped)
	assert.Equal(t, WatchedSet{iv(1, 4)}, MergeAll(intervals))
	assert.Equal(t, [][]float64{{1, 4}}, MergeAll(intervals).Pairs())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", FormatClock(0))
	assert.Equal(t, "1:05", FormatClock(65.9))
	assert.Equal(t, "61:01", FormatClock(3661))
	assert.Equal(t, "0:00", FormatClock(-3))

	assert.Equal(t, "1:05", FormatClockDetailed(65))
	assert.Equal(t, "1:01:01", FormatClockDetailed(3661))
}

func randomIntervals(rng *rand.Rand, n int) []Interval {
	out := make([]Interval, 0, n)
	for range rng.IntN(n) + 1 {
		start := float64(rng.IntN(100))
		end := start + float64(rng.IntN(10)) - 1
		out = append(out, iv(start, end))
	}
	return out
}
