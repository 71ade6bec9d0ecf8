package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     *string   `json:"fullName,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
