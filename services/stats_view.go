package services

import "warungsoal-progression/models"

// StatsView is the client-facing shape of a stats row: the raw counters plus the
// derived level bar and trophy badge.
type StatsView struct {
	models.UserStats
	LevelProgress LevelProgress `json:"level_progress"`
	Trophy        TrophyDisplay `json:"trophy"`
}

func NewStatsView(st models.UserStats) StatsView {
	return StatsView{
		UserStats:     st,
		LevelProgress: LevelProgressFor(st.TotalExp),
		Trophy:        TrophyDisplayFor(st.TrophyRank),
	}
}
