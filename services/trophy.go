package services

import (
	"warungsoal-progression/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TrophyThresholds: seasonal EXP needed to hold each tier.
var TrophyThresholds = map[models.TrophyRank]int64{
	models.TrophyBronze:   0,
	models.TrophySilver:   500,
	models.TrophyGold:     2000,
	models.TrophyPlatinum: 5000,
	models.TrophyDiamond:  10000,
	models.TrophyRadiant:  20000,
}

// trophyColors mirror the badge gradients the web client renders.
var trophyColors = map[models.TrophyRank]string{
	models.TrophyBronze:   "orange",
	models.TrophySilver:   "gray",
	models.TrophyGold:     "yellow",
	models.TrophyPlatinum: "teal",
	models.TrophyDiamond:  "blue",
	models.TrophyRadiant:  "pink",
}

// TrophyFromSeasonalExp returns the highest tier whose threshold is <= seasonalExp.
func TrophyFromSeasonalExp(seasonalExp int64) models.TrophyRank {
	for i := len(models.TrophyOrder) - 1; i >= 0; i-- {
		tier := models.TrophyOrder[i]
		if seasonalExp >= TrophyThresholds[tier] {
			return tier
		}
	}
	return models.TrophyBronze
}

// NextThreshold returns the seasonal EXP needed for the tier above.
// ok is false for radiant (and unknown tiers): there is no further promotion.
func NextThreshold(tier models.TrophyRank) (threshold int64, ok bool) {
	i := tier.Ordinal()
	if i < 0 || i == len(models.TrophyOrder)-1 {
		return 0, false
	}
	return TrophyThresholds[models.TrophyOrder[i+1]], true
}

// DemoteOneTier maps a tier to the one immediately below it. Bronze stays bronze.
func DemoteOneTier(tier models.TrophyRank) models.TrophyRank {
	i := tier.Ordinal()
	if i <= 0 {
		return models.TrophyBronze
	}
	return models.TrophyOrder[i-1]
}

// HigherTrophy returns whichever of a and b ranks higher.
func HigherTrophy(a, b models.TrophyRank) models.TrophyRank {
	if b.Ordinal() > a.Ordinal() {
		return b
	}
	return a
}

// TrophyDisplay is what the client needs to render a trophy badge.
type TrophyDisplay struct {
	Rank          models.TrophyRank `json:"rank"`
	Name          string            `json:"name"`
	Color         string            `json:"color"`
	NextThreshold *int64            `json:"next_threshold"` // nil once radiant
}

// TrophyDisplayFor builds the badge description for a tier.
func TrophyDisplayFor(tier models.TrophyRank) TrophyDisplay {
	d := TrophyDisplay{
		Rank:  tier,
		Name:  cases.Title(language.Und).String(string(tier)),
		Color: trophyColors[tier],
	}
	if next, ok := NextThreshold(tier); ok {
		d.NextThreshold = &next
	}
	return d
}
