package services

import (
	"testing"

	"warungsoal-progression/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrophyFromSeasonalExp(t *testing.T) {
	tests := []struct {
		exp  int64
		want models.TrophyRank
	}{
		{0, models.TrophyBronze},
		{499, models.TrophyBronze},
		{500, models.TrophySilver},
		{1999, models.TrophySilver},
		{2000, models.TrophyGold},
		{4999, models.TrophyGold},
		{5000, models.TrophyPlatinum},
		{10000, models.TrophyDiamond},
		{19999, models.TrophyDiamond},
		{20000, models.TrophyRadiant},
		{1 << 40, models.TrophyRadiant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrophyFromSeasonalExp(tt.exp), "exp=%d", tt.exp)
	}
}

func TestDemoteOneTier(t *testing.T) {
	assert.Equal(t, models.TrophyBronze, DemoteOneTier(models.TrophyBronze))
	assert.Equal(t, models.TrophyBronze, DemoteOneTier(models.TrophySilver))
	assert.Equal(t, models.TrophySilver, DemoteOneTier(models.TrophyGold))
	assert.Equal(t, models.TrophyDiamond, DemoteOneTier(models.TrophyRadiant))
	assert.Equal(t, models.TrophyBronze, DemoteOneTier("wooden"))
}

func TestNextThreshold(t *testing.T) {
	next, ok := NextThreshold(models.TrophyBronze)
	require.True(t, ok)
	assert.Equal(t, int64(500), next)

	_, ok = NextThreshold(models.TrophyRadiant)
	assert.False(t, ok)
}

func TestHigherTrophy(t *testing.T) {
	assert.Equal(t, models.TrophyGold, HigherTrophy(models.TrophyGold, models.TrophySilver))
	assert.Equal(t, models.TrophyGold, HigherTrophy(models.TrophySilver, models.TrophyGold))
	assert.Equal(t, models.TrophyBronze, HigherTrophy(models.TrophyBronze, models.TrophyBronze))
}

func TestTrophyDisplayFor(t *testing.T) {
	d := TrophyDisplayFor(models.TrophyPlatinum)
	assert.Equal(t, "Platinum", d.Name)
	assert.Equal(t, "teal", d.Color)
	require.NotNil(t, d.NextThreshold)
	assert.Equal(t, int64(10000), *d.NextThreshold)

	assert.Nil(t, TrophyDisplayFor(models.TrophyRadiant).NextThreshold)
}

func TestSeasonStartRank(t *testing.T) {
	assert.Equal(t, models.TrophyBronze, SeasonStartRank(models.TrophyBronze))
	assert.Equal(t, models.TrophyBronze, SeasonStartRank(models.TrophySilver))
	assert.Equal(t, models.TrophySilver, SeasonStartRank(models.TrophyGold))
	assert.Equal(t, models.TrophyDiamond, SeasonStartRank(models.TrophyRadiant))
}
