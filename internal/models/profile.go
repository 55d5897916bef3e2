package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExperiencePerLevel is the amount of experience needed to advance one level.
const ExperiencePerLevel = 100

// UserProfile carries the gamification state of a user.
type UserProfile struct {
	UserID         string                      `gorm:"primaryKey;size:128" json:"user_id"`
	Username       string                      `gorm:"size:64" json:"username"`
	Avatar         string                      `gorm:"size:512" json:"avatar"`
	Coins          int                         `gorm:"index" json:"coins"`
	Experience     int                         `gorm:"index" json:"experience"`
	Level          int                         `json:"level"`
	CompletedTasks datatypes.JSONSlice[string] `gorm:"not null" json:"completed_tasks"`
	Friends        datatypes.JSONSlice[string] `gorm:"not null" json:"friends"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// LevelFor derives the level from accumulated experience.
func LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}

// LevelProgress is the percentage towards the next level.
func LevelProgress(experience int) int {
	if experience < 0 {
		return 0
	}
	return experience % ExperiencePerLevel
}

// HasCompleted reports whether the task id is already recorded.
func (p UserProfile) HasCompleted(taskID string) bool {
	for _, id := range p.CompletedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// HasFriend reports whether the user id is in the friends list.
func (p UserProfile) HasFriend(userID string) bool {
	for _, id := range p.Friends {
		if id == userID {
			return true
		}
	}
	return false
}

// DisplayName falls back to the user id when no username is set.
func (p UserProfile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID
}
