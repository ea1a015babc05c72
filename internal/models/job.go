package models

import "time"

// Job is owned by the projects service; CreatedBy is the owning client.
type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedBy uint      `gorm:"not null;index" json:"created_by"`
	Status    string    `gorm:"size:20" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
