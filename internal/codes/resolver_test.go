package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_FirstDefinitionWins(t *testing.T) {
	r := NewResolver([]Def{
		{Code: "k", Description: "Kampanya", DurationSec: 30},
		{Code: "K ", Description: "Kopya", DurationSec: 45},
		{Code: "A", DurationSec: 20},
		{Code: "  ", DurationSec: 99},
		{Code: "N", DurationSec: -5},
	})

	assert.Equal(t, 30, r.Resolve("K"))
	assert.Equal(t, 30, r.Resolve("k"))
	assert.Equal(t, 20, r.Resolve("a"))
	assert.Equal(t, 0, r.Resolve("N"))
	assert.Equal(t, 0, r.Resolve("Z"))
	assert.True(t, r.Defined("n"))
	assert.False(t, r.Defined("z"))

	assert.Equal(t, []Def{
		{Code: "K", Description: "Kampanya", DurationSec: 30},
		{Code: "A", DurationSec: 20},
		{Code: "N", DurationSec: 0},
	}, r.Defs())
}

func TestResolver_WeightedAverageDuration(t *testing.T) {
	r := NewResolver([]Def{{Code: "K", DurationSec: 30}, {Code: "A", DurationSec: 15}})

	assert.Equal(t, 0.0, r.WeightedAverageDuration(nil))
	assert.Equal(t, 30.0, r.WeightedAverageDuration(map[string]int{"K": 4}))
	assert.Equal(t, 25.0, r.WeightedAverageDuration(map[string]int{"K": 2, "A": 1}))
	// undefined codes count as zero-second placements
	assert.Equal(t, 15.0, r.WeightedAverageDuration(map[string]int{"K": 1, "Z": 1}))
}

func TestResolver_SpotLength(t *testing.T) {
	r := NewResolver([]Def{{Code: "K", DurationSec: 30}, {Code: "A", DurationSec: 15}})

	assert.Equal(t, "", r.SpotLength(nil))
	assert.Equal(t, "30", r.SpotLength(map[string]int{"K": 3, "k": 1}))
	assert.Equal(t, "25", r.SpotLength(map[string]int{"K": 2, "A": 1}))
	assert.Equal(t, "22.5", r.SpotLength(map[string]int{"K": 1, "A": 1}))
	assert.Equal(t, "", r.SpotLength(map[string]int{"Z": 2}))
}

func TestMergeDefs(t *testing.T) {
	got := MergeDefs(
		[]Def{{Code: "K", DurationSec: 30}},
		[]Def{{Code: "k", DurationSec: 45}, {Code: "B", DurationSec: 10}},
	)
	assert.Equal(t, []Def{{Code: "K", DurationSec: 30}, {Code: "B", DurationSec: 10}}, got)
}
