package models

import (
	"time"
)

// AwardRecord is the ledger row written in the same transaction as the stats
// delta it paid for. The primary key makes event replays no-ops; the dedupe key
// stops a second event from paying for the same Q&A fact.
type AwardRecord struct {
	EventID    string     `gorm:"primaryKey;size:64" json:"event_id"`
	DedupeKey  string     `gorm:"size:255;not null;uniqueIndex" json:"-"`
	UserID     string     `gorm:"size:64;not null;index" json:"user_id"`
	Action     Action     `gorm:"type:varchar(32);not null" json:"action"`
	Difficulty Difficulty `gorm:"type:varchar(16);not null" json:"difficulty"`
	QuestionID string     `gorm:"size:64;not null" json:"question_id"`
	AnswerID   string     `gorm:"size:64" json:"answer_id,omitempty"`
	ExpAwarded int64      `gorm:"not null" json:"exp_awarded"`
	Season     int        `gorm:"not null" json:"season"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (AwardRecord) TableName() string { return "award_events" }
