package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserUsage tracks cumulative generation activity for a user.
type UserUsage struct {
	TotalSessions   int `json:"total_sessions"`
	TotalComponents int `json:"total_components"`
	TotalTokens     int `json:"total_tokens"`
}

type User struct {
	ID           uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                        `gorm:"size:100;not null" json:"name"`
	Email        string                        `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string                        `gorm:"size:255;not null" json:"-"`
	Role         string                        `gorm:"size:20;not null;default:'user'" json:"role"`
	IsActive     bool                          `gorm:"not null;default:true" json:"is_active"`
	Preferences  datatypes.JSON                `gorm:"type:jsonb;not null;default:'{}'" json:"preferences"`
	Usage        datatypes.JSONType[UserUsage] `gorm:"type:jsonb" json:"usage"`
	LastLoginAt  *time.Time                    `json:"last_login_at"`
	CreatedAt    time.Time                     `json:"created_at"`
	UpdatedAt    time.Time                     `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RecordUsage bumps the cumulative counters.
func (u *User) RecordUsage(sessions, components, tokens int) {
	usage := u.Usage.Data()
	usage.TotalSessions += sessions
	usage.TotalComponents += components
	usage.TotalTokens += tokens
	u.Usage = datatypes.NewJSONType(usage)
}
