package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SavedComponent is a library entry: a session's component promoted to a
// standalone, queryable row.
type SavedComponent struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID                       `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID   uuid.UUID                       `gorm:"type:uuid;not null;index" json:"session_id"`
	Name        string                          `gorm:"size:100;not null" json:"name"`
	Description string                          `gorm:"size:500" json:"description"`
	JSX         string                          `gorm:"type:text;not null" json:"jsx"`
	CSS         string                          `gorm:"type:text;not null" json:"css"`
	Version     int                             `gorm:"not null;default:1" json:"version"`
	Tags        datatypes.JSONSlice[string]     `gorm:"type:jsonb" json:"tags"`
	Metadata    datatypes.JSONType[MessageMeta] `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (c *SavedComponent) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
