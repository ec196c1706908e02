package bates

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

func readingsOf(values ...int) []model.StampReading {
	out := make([]model.StampReading, len(values))
	for i, v := range values {
		if v < 0 {
			out[i] = model.AbsentStampReading(i, "")
			continue
		}
		out[i] = model.NewStampReading(i, v, padded(v), "")
	}
	return out
}

func padded(v int) string {
	return fmt.Sprintf("%06d", v)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		readings []model.StampReading
		want     model.SequenceVerdict
		pages    int
	}{
		{
			name:     "consecutive",
			readings: readingsOf(101, 102, 103),
			pages:    3,
			want: model.SequenceVerdict{
				Kind: model.VerdictConsistent, Start: 101, End: 103, Width: 6,
				ReadPages: 3, ExpectedPages: 3,
			},
		},
		{
			name:     "single page",
			readings: readingsOf(55),
			pages:    1,
			want: model.SequenceVerdict{
				Kind: model.VerdictConsistent, Start: 55, End: 55, Width: 6,
				ReadPages: 1, ExpectedPages: 1,
			},
		},
		{
			name:     "absent stamp",
			readings: readingsOf(101, -1, 103),
			pages:    3,
			want: model.SequenceVerdict{
				Kind: model.VerdictMissing, MissingPages: []int{1},
				ReadPages: 3, ExpectedPages: 3,
			},
		},
		{
			name:     "fewer readings than pages",
			readings: readingsOf(101, 102),
			pages:    3,
			want: model.SequenceVerdict{
				Kind: model.VerdictMissing, ReadPages: 2, ExpectedPages: 3,
			},
		},
		{
			name:     "skipped number",
			readings: readingsOf(101, 103, 104),
			pages:    3,
			want: model.SequenceVerdict{
				Kind: model.VerdictInconsecutive,
				Gaps: []model.Gap{{Page: 1, Expected: 102, Found: 103}},
				ReadPages: 3, ExpectedPages: 3,
			},
		},
		{
			name:     "out of order",
			readings: readingsOf(10, 12, 11),
			pages:    3,
			want: model.SequenceVerdict{
				Kind: model.VerdictInconsecutive,
				Gaps: []model.Gap{
					{Page: 1, Expected: 11, Found: 12},
					{Page: 2, Expected: 13, Found: 11},
				},
				ReadPages: 3, ExpectedPages: 3,
			},
		},
		{
			name:  "empty document",
			pages: 0,
			want:  model.SequenceVerdict{Kind: model.VerdictMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.readings, tt.pages))
		})
	}
}

func TestValidate_ConsecutiveRuns(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(40)
		start := rng.Intn(1_000_000)
		values := make([]int, n)
		for j := range values {
			values[j] = start + j
		}

		v := Validate(readingsOf(values...), n)
		require.Equal(t, model.VerdictConsistent, v.Kind)
		assert.Equal(t, start, v.Start)
		assert.Equal(t, start+n-1, v.End)
	}
}

func TestValidate_MissingPagesMatchAbsentIndices(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(30)
		values := make([]int, n)
		var absent []int
		for j := range values {
			values[j] = 500 + j
			if rng.Intn(4) == 0 {
				values[j] = -1
				absent = append(absent, j)
			}
		}
		pages := n
		if len(absent) == 0 {
			pages = n + 1 + rng.Intn(3)
		}

		v := Validate(readingsOf(values...), pages)
		require.Equal(t, model.VerdictMissing, v.Kind)
		got := append([]int(nil), v.MissingPages...)
		sort.Ints(got)
		assert.Equal(t, absent, got)
	}
}

func TestValidate_GapsListEveryViolationOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		n := 2 + rng.Intn(30)
		values := make([]int, n)
		values[0] = rng.Intn(1000)
		for j := 1; j < n; j++ {
			values[j] = values[j-1] + 1
			if rng.Intn(5) == 0 {
				values[j] += 1 + rng.Intn(3)
			}
		}

		var violations []int
		for j := 0; j+1 < n; j++ {
			if values[j+1] != values[j]+1 {
				violations = append(violations, j+1)
			}
		}

		v := Validate(readingsOf(values...), n)
		if len(violations) == 0 {
			assert.Equal(t, model.VerdictConsistent, v.Kind)
			continue
		}
		require.Equal(t, model.VerdictInconsecutive, v.Kind)
		pages := make([]int, len(v.Gaps))
		for j, g := range v.Gaps {
			pages[j] = g.Page
			assert.Equal(t, values[g.Page-1]+1, g.Expected)
			assert.Equal(t, values[g.Page], g.Found)
		}
		assert.Equal(t, violations, pages)
	}
}
