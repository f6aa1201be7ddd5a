package models

import (
	"time"
)

// User is an account mirrored from the identity provider
type User struct {
	ID          string    `db:"id" json:"id"`
	ExternalID  string    `db:"external_id" json:"externalId"`
	Email       string    `db:"email" json:"email"`
	DisplayName *string   `db:"display_name" json:"displayName"`
	AvatarURL   *string   `db:"avatar_url" json:"avatarUrl"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
