package models

import "time"

// DefaultAvatarURL is assigned to every new user until a profile picture is uploaded.
const DefaultAvatarURL = "/static/images/avatar/1.jpg"

// User represents an account of the tracker.
type User struct {
	ID           string    `json:"-" gorm:"primaryKey;type:varchar(36)"`
	PublicID     int64     `json:"userid" gorm:"uniqueIndex;not null"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"` // never serialised
	IsAdmin      bool      `json:"is_sudo" gorm:"not null;default:false"`
	AvatarURL    string    `json:"profile_pic" gorm:"type:varchar(512)"`
	JoinedAt     time.Time `json:"joined_date"`
	UpdatedAt    time.Time `json:"-"`
}

// Role returns the display role derived from the admin flag.
func (u *User) Role() string {
	if u.IsAdmin {
		return "Admin"
	}
	return "Member"
}
