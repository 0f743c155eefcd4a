package confluence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
)

var activeKZ = contracts.KillZoneWindow{CurrentZone: contracts.KillZoneLondon, IsActive: true}
var inactiveKZ = contracts.KillZoneWindow{CurrentZone: contracts.KillZoneOffHours}

func layers(scores [10]int, passed [10]bool) []contracts.LayerScore {
	out := make([]contracts.LayerScore, 0, 10)
	for i := 0; i < 10; i++ {
		id := contracts.LayerID(i + 1)
		out = append(out, contracts.LayerScore{LayerID: id, Key: id.Key(), Score: scores[i], Passed: passed[i]})
	}
	return out
}

func allPassed() [10]bool {
	return [10]bool{true, true, true, true, true, true, true, true, true, true}
}

var exampleScores = [10]int{90, 85, 80, 75, 70, 90, 60, 70, 65, 80}

func TestAggregate_WorkedExample(t *testing.T) {
	per := layers(exampleScores, allPassed())

	res, err := NewDefaultAggregator().Aggregate(per, activeKZ)
	require.NoError(t, err)
	assert.Equal(t, 80, res.CompositeScore)
	assert.Equal(t, 80, res.RawScore)
	assert.False(t, res.KillZonePenaltyApplied)
	assert.InDelta(t, 18.0, res.WeightedComponents["smc"], 1e-9)
	assert.InDelta(t, 12.75, res.WeightedComponents["structure"], 1e-9)
	assert.InDelta(t, 3.25, res.WeightedComponents["sentiment"], 1e-9)

	val, err := NewDefaultGate().Validate(per)
	require.NoError(t, err)
	assert.True(t, val.Passed)
	assert.Equal(t, 10, val.PassedLayers)
	assert.Empty(t, val.CriticalLayersFailed)

	assert.Equal(t, contracts.QualityGood, Classify(res.CompositeScore))
}

func TestValidate_AIFailureVetoes(t *testing.T) {
	passed := allPassed()
	passed[9] = false
	per := layers(exampleScores, passed)

	val, err := NewDefaultGate().Validate(per)
	require.NoError(t, err)
	assert.False(t, val.Passed)
	assert.Equal(t, 9, val.PassedLayers)
	assert.Equal(t, []contracts.LayerID{contracts.LayerAI}, val.CriticalLayersFailed)
}

func TestAggregate_KillZonePenalty(t *testing.T) {
	agg := NewDefaultAggregator()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		var scores [10]int
		for j := range scores {
			scores[j] = rng.Intn(101)
		}
		per := layers(scores, allPassed())

		on, err := agg.Aggregate(per, activeKZ)
		require.NoError(t, err)
		off, err := agg.Aggregate(per, inactiveKZ)
		require.NoError(t, err)

		want := on.CompositeScore - 15
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, off.CompositeScore, "scores=%v", scores)
		assert.Equal(t, on.CompositeScore, off.RawScore)
		assert.True(t, off.KillZonePenaltyApplied)
		assert.Equal(t, on.CompositeScore-off.CompositeScore, off.Penalty)
		assert.GreaterOrEqual(t, off.CompositeScore, 0)
		assert.LessOrEqual(t, on.CompositeScore, 100)
	}
}

func TestAggregate_Extremes(t *testing.T) {
	agg := NewDefaultAggregator()

	zero, err := agg.Aggregate(layers([10]int{}, [10]bool{}), inactiveKZ)
	require.NoError(t, err)
	assert.Equal(t, 0, zero.CompositeScore)
	assert.Equal(t, 0, zero.Penalty)

	full := [10]int{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
	top, err := agg.Aggregate(layers(full, allPassed()), activeKZ)
	require.NoError(t, err)
	assert.Equal(t, 100, top.CompositeScore)
}

func TestAggregate_RoundsHalfUp(t *testing.T) {
	scores := [10]int{0, 0, 0, 0, 0, 0, 10, 0, 0, 0} // 10×5/100 = 0.5
	res, err := NewDefaultAggregator().Aggregate(layers(scores, allPassed()), activeKZ)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CompositeScore)

	scores = [10]int{0, 0, 0, 0, 0, 0, 9, 0, 0, 0} // 0.45
	res, err = NewDefaultAggregator().Aggregate(layers(scores, allPassed()), activeKZ)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CompositeScore)
}

func TestAggregate_OrdersPerLayer(t *testing.T) {
	per := layers(exampleScores, allPassed())
	per[0], per[9] = per[9], per[0]

	res, err := NewDefaultAggregator().Aggregate(per, activeKZ)
	require.NoError(t, err)
	for i, s := range res.PerLayer {
		assert.Equal(t, contracts.LayerID(i+1), s.LayerID)
	}
	assert.Equal(t, 80, res.CompositeScore)
}

func TestMalformedInput(t *testing.T) {
	good := layers(exampleScores, allPassed())

	dup := append([]contracts.LayerScore(nil), good...)
	dup[9].LayerID = 1

	outOfRange := append([]contracts.LayerScore(nil), good...)
	outOfRange[9].LayerID = 11

	badScore := append([]contracts.LayerScore(nil), good...)
	badScore[3].Score = 101

	tests := []struct {
		name   string
		scores []contracts.LayerScore
	}{
		{"nine results", good[:9]},
		{"eleven results", append(append([]contracts.LayerScore(nil), good...), good[0])},
		{"duplicate id", dup},
		{"id out of range", outOfRange},
		{"score above 100", badScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefaultAggregator().Aggregate(tt.scores, activeKZ)
			assert.ErrorIs(t, err, contracts.ErrMalformedInput)

			_, err = NewDefaultGate().Validate(tt.scores)
			assert.ErrorIs(t, err, contracts.ErrMalformedInput)
		})
	}
}

// Every one of the 1024 pass-flag combinations: passed ⇔ count ≥ 8 ∧ no critical failure
func TestValidate_Exhaustive(t *testing.T) {
	gate := NewDefaultGate()
	critical := map[int]bool{0: true, 1: true, 2: true, 9: true}

	for mask := 0; mask < 1<<10; mask++ {
		var passed [10]bool
		count, criticalOK := 0, true
		for i := 0; i < 10; i++ {
			passed[i] = mask&(1<<i) != 0
			if passed[i] {
				count++
			} else if critical[i] {
				criticalOK = false
			}
		}

		val, err := gate.Validate(layers(exampleScores, passed))
		require.NoError(t, err)

		want := count >= 8 && criticalOK
		require.Equal(t, want, val.Passed, "mask=%010b", mask)
		require.Equal(t, count, val.PassedLayers)
		require.Equal(t, val.Passed, val.PassedLayers >= val.RequiredMinimum && len(val.CriticalLayersFailed) == 0)
	}
}

func TestClassify_Partition(t *testing.T) {
	boundaries := []struct {
		score int
		want  contracts.Quality
	}{
		{100, contracts.QualityInstitutional},
		{95, contracts.QualityInstitutional},
		{94, contracts.QualityExcellent},
		{90, contracts.QualityExcellent},
		{89, contracts.QualityStrong},
		{85, contracts.QualityStrong},
		{84, contracts.QualityGood},
		{80, contracts.QualityGood},
		{79, contracts.QualityWeak},
		{0, contracts.QualityWeak},
		{-5, contracts.QualityWeak},
		{140, contracts.QualityInstitutional},
	}
	for _, b := range boundaries {
		assert.Equal(t, b.want, Classify(b.score), "score %d", b.score)
	}

	// tiers never go down as the score goes up
	prev := Classify(0).Rank()
	for s := 1; s <= 100; s++ {
		r := Classify(s).Rank()
		assert.GreaterOrEqual(t, r, prev, "score %d", s)
		prev = r
	}
}

func TestDirection(t *testing.T) {
	agg := NewDefaultAggregator()
	per := layers(exampleScores, allPassed())

	dir, _, _ := agg.Direction(per)
	assert.Equal(t, contracts.DirectionNone, dir, "no bias reported")

	per[0].Bias = contracts.DirectionShort // 20
	per[1].Bias = contracts.DirectionLong  // 15
	per[9].Bias = contracts.DirectionLong  // 10
	dir, long, short := agg.Direction(per)
	assert.Equal(t, contracts.DirectionLong, dir)
	assert.Equal(t, 25, long)
	assert.Equal(t, 20, short)

	per[9].Passed = false // failed layers do not vote
	dir, _, _ = agg.Direction(per)
	assert.Equal(t, contracts.DirectionShort, dir)

	per[9].Passed = true
	per[1].Bias = contracts.DirectionNone
	per[3].Bias = contracts.DirectionLong  // long 10+10
	per[5].Bias = contracts.DirectionShort // short 20+10
	dir, _, _ = agg.Direction(per)
	assert.Equal(t, contracts.DirectionShort, dir)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w[contracts.LayerAI] = 11
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	delete(w, contracts.LayerAI)
	assert.Error(t, w.Validate())

	_, err := NewAggregator(DefaultWeights(), -1)
	assert.Error(t, err)
}

func TestNewGate_Rejects(t *testing.T) {
	_, err := NewGate([]contracts.LayerID{1, 1}, 8)
	assert.Error(t, err)
	_, err = NewGate([]contracts.LayerID{11}, 8)
	assert.Error(t, err)
	_, err = NewGate(DefaultCriticalLayers(), 0)
	assert.Error(t, err)
}
