package models

import (
	"strings"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
)

// User is owned by the accounts service; this service only reads it.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      string    `gorm:"size:20;not null;index" json:"role"` // CLIENT | FREELANCER | ADMIN
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	FCMToken  string    `gorm:"size:512" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsClient() bool     { return u.Role == domain.RoleClient }
func (u *User) IsFreelancer() bool { return u.Role == domain.RoleFreelancer }
func (u *User) IsAdmin() bool      { return u.Role == domain.RoleAdmin }

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
