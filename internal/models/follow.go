package models

import (
	"time"

	"gorm.io/gorm"
)

// FollowStatus is the state of a follow edge
type FollowStatus string

const (
	// FollowStatusPending is a request to follow a private account
	FollowStatusPending FollowStatus = "pending"
	// FollowStatusAccepted is an active follow
	FollowStatusAccepted FollowStatus = "accepted"
)

// Follow is a directed edge from follower to following. Follows of
// private accounts start pending and become accepted when approved.
// Rejection and unfollow delete the row.
type Follow struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	FollowerID  string       `gorm:"not null;uniqueIndex:idx_follows_pair;index:idx_follows_follower_status,priority:1;size:36" json:"followerId"`
	FollowingID string       `gorm:"not null;uniqueIndex:idx_follows_pair;index:idx_follows_following_status,priority:1;size:36" json:"followingId"`
	Status      FollowStatus `gorm:"not null;size:16;index:idx_follows_follower_status,priority:2;index:idx_follows_following_status,priority:2" json:"status"`
	Follower    *User        `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"follower,omitempty"`
	Following   *User        `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"following,omitempty"`
	AcceptedAt  *time.Time   `json:"acceptedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// IsPending reports whether the follow is awaiting approval
func (f *Follow) IsPending() bool {
	return f.Status == FollowStatusPending
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	if f.Status == "" {
		f.Status = FollowStatusAccepted
	}
	return nil
}
