package models

import (
	"time"
)

// Season is one competitive window. Exactly one row is active at a time;
// closed rows are kept for history.
type Season struct {
	SeasonNumber int        `gorm:"primaryKey;autoIncrement:false" json:"season_number"`
	StartDate    time.Time  `gorm:"not null" json:"start_date"`
	EndDate      time.Time  `gorm:"not null" json:"end_date"`
	IsActive     bool       `gorm:"not null;default:false;index" json:"is_active"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Season) TableName() string { return "seasons" }

// SeasonResult is a user's final standing in a closed season.
type SeasonResult struct {
	SeasonNumber int        `gorm:"primaryKey;autoIncrement:false" json:"season_number"`
	UserID       string     `gorm:"primaryKey;size:64;index" json:"user_id"`
	SeasonalExp  int64      `gorm:"not null" json:"seasonal_exp"`
	TrophyRank   TrophyRank `gorm:"type:varchar(16);not null" json:"trophy_rank"`
	Position     int        `gorm:"not null" json:"position"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SeasonResult) TableName() string { return "season_results" }

// All lists every table this service migrates.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&UserStats{},
		&Season{},
		&SeasonResult{},
		&AwardRecord{},
	}
}
