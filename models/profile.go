package models

import (
	"time"
)

// Profile is a local snapshot of the identity service's profile row.
// Owned by the identity service; populated here only by the profile sync worker.
type Profile struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"user_id"` // profiles.id upstream
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Role        string    `gorm:"type:varchar(16);not null;default:'user'" json:"role"` // admin | user | teacher
	Major       *string   `json:"major,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"index"`
}

func (Profile) TableName() string { return "profiles" }

const (
	RoleAdmin   = "admin"
	RoleUser    = "user"
	RoleTeacher = "teacher"
)
