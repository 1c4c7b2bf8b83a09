package daterange

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectPairs(r Range) []Pair {
	return slices.Collect(r.Pairs())
}

func TestPairsThreeDays(t *testing.T) {
	r, err := ParseRange("2025-04-01", "2025-04-03")
	require.NoError(t, err)

	pairs := collectPairs(r)
	require.Len(t, pairs, 3)
	assert.Equal(t, "2025-04-01", pairs[0].From.String())
	assert.Equal(t, "2025-04-02", pairs[0].To.String())
	assert.Equal(t, "2025-04-03", pairs[2].From.String())
	assert.Equal(t, "2025-04-04", pairs[2].To.String())
}

func TestPairsSameDay(t *testing.T) {
	r, err := ParseRange("2025-05-10", "2025-05-10")
	require.NoError(t, err)

	pairs := collectPairs(r)
	require.Len(t, pairs, 1)
	assert.Equal(t, Pair{From: MustParse("2025-05-10"), To: MustParse("2025-05-11")}, pairs[0])
}

func TestPairsCountMatchesDays(t *testing.T) {
	start := MustParse("2024-02-20")
	for n := 0; n < 40; n++ {
		r, err := New(start, start.AddDays(n))
		require.NoError(t, err)
		pairs := collectPairs(r)
		if len(pairs) != r.Days() {
			t.Fatalf("span %d: expected %d pairs, got %d", n, r.Days(), len(pairs))
		}
		for i := 1; i < len(pairs); i++ {
			if !pairs[i].From.Equal(pairs[i-1].To) {
				t.Fatalf("pairs not contiguous at %d", i)
			}
		}
	}
}

func TestPairsStopsEarly(t *testing.T) {
	r, err := ParseRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	seen := 0
	for range r.Pairs() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestNewRejectsInvertedRange(t *testing.T) {
	_, err := ParseRange("2025-04-03", "2025-04-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = ParseRange("2025-04-xx", "2025-04-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCheckLimit(t *testing.T) {
	r, err := ParseRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.NoError(t, r.CheckLimit(MaxFanoutDays))

	r, err = ParseRange("2025-01-01", "2025-02-01")
	require.NoError(t, err)
	assert.ErrorIs(t, r.CheckLimit(MaxFanoutDays), ErrRangeTooLarge)
}

func TestMonth(t *testing.T) {
	r, err := Month("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", r.From.String())
	assert.Equal(t, "2024-02-29", r.To.String())
	assert.Equal(t, 29, r.Days())

	_, err = Month("2024/02")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestEachAndContains(t *testing.T) {
	r, err := ParseRange("2025-05-01", "2025-05-03")
	require.NoError(t, err)
	days := slices.Collect(r.Each())
	require.Len(t, days, 3)
	assert.True(t, r.Contains(MustParse("2025-05-02")))
	assert.False(t, r.Contains(MustParse("2025-05-04")))
	assert.Equal(t, time.Thursday, days[0].Weekday())
}

func TestDateText(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2025-03-09")))
	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", string(out))
	assert.Equal(t, "2025-03-09", FromTime(time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)).String())
}
