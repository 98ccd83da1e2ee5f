package services

import (
	"math"
)

// BaseExpPerLevel scales the quadratic curve: reaching level L takes (L-1)^2 * BaseExpPerLevel.
const BaseExpPerLevel = 100

// ExpThresholdForLevel returns the lifetime EXP needed to reach level.
// e.g., level 1 → 0, level 2 → 100, level 3 → 400
func ExpThresholdForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return n * n * BaseExpPerLevel
}

// LevelFromTotalExp returns the greatest level whose threshold is <= totalExp.
func LevelFromTotalExp(totalExp int64) int {
	if totalExp < BaseExpPerLevel {
		return 1
	}
	// float sqrt gets us within one of the answer; fix up the edges exactly
	level := int(math.Sqrt(float64(totalExp/BaseExpPerLevel))) + 1
	for level > 1 && ExpThresholdForLevel(level) > totalExp {
		level--
	}
	for ExpThresholdForLevel(level+1) <= totalExp {
		level++
	}
	return level
}

// LevelProgress describes where a user sits between two levels.
type LevelProgress struct {
	Level           int     `json:"level"`
	CurrentLevelExp int64   `json:"current_level_exp"`
	NextLevelExp    int64   `json:"next_level_exp"`
	ExpIntoLevel    int64   `json:"exp_into_level"`
	ExpNeeded       int64   `json:"exp_needed"`
	Percent         float64 `json:"percent"`
}

// LevelProgressFor computes the level bar for a lifetime EXP total.
func LevelProgressFor(totalExp int64) LevelProgress {
	if totalExp < 0 {
		totalExp = 0
	}
	level := LevelFromTotalExp(totalExp)
	cur := ExpThresholdForLevel(level)
	next := ExpThresholdForLevel(level + 1)
	span := next - cur
	into := totalExp - cur
	return LevelProgress{
		Level:           level,
		CurrentLevelExp: cur,
		NextLevelExp:    next,
		ExpIntoLevel:    into,
		ExpNeeded:       span,
		Percent:         float64(into) / float64(span) * 100,
	}
}
