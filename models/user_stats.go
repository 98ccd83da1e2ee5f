package models

import (
	"time"
)

// UserStats tracks experience, level and trophy standing for one user (one row per user).
// Rows are written only by StatsStore.ApplyDelta and SeasonController.ResetSeason.
type UserStats struct {
	UserID string `gorm:"primaryKey;size:64" json:"user_id"` // links to profile service

	// Core progression
	Level       int        `json:"level" gorm:"not null;default:1"`
	ExpPoints   int64      `json:"exp_points" gorm:"not null;default:0"`
	SeasonalExp int64      `json:"seasonal_exp" gorm:"not null;default:0;index"`
	TotalExp    int64      `json:"total_exp" gorm:"not null;default:0;index"`
	TrophyRank  TrophyRank `json:"trophy_rank" gorm:"type:varchar(16);not null;default:'bronze'"`
	Season      int        `json:"season" gorm:"not null;default:1"`

	// Activity counters
	QuestionsAsked    int64 `json:"questions_asked" gorm:"not null;default:0"`
	QuestionsAnswered int64 `json:"questions_answered" gorm:"not null;default:0"`

	// Optimistic concurrency fence, bumped on every write
	Version int64 `json:"-" gorm:"not null;default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

func (UserStats) TableName() string { return "user_stats" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;index"`
}

// NewUserStats returns the zeroed row a user starts with.
func NewUserStats(userID string, season int) UserStats {
	return UserStats{
		UserID:     userID,
		Level:      1,
		TrophyRank: TrophyBronze,
		Season:     season,
	}
}

// CounterField names one of the activity counters that an award may bump.
type CounterField string

const (
	CounterNone              CounterField = ""
	CounterQuestionsAsked    CounterField = "questions_asked"
	CounterQuestionsAnswered CounterField = "questions_answered"
)

// Valid reports whether c is a known counter (or none).
func (c CounterField) Valid() bool {
	switch c {
	case CounterNone, CounterQuestionsAsked, CounterQuestionsAnswered:
		return true
	}
	return false
}
