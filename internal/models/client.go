package models

import "time"

// Client is a customer bills are issued to.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"` // owner
	Name      string    `gorm:"size:200;not null;index" json:"name"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	Phone     string    `gorm:"size:20" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Bills []Bill `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
}

