package model

import (
	"time"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	Username     string
	PasswordHash string
}

// PartnerStatus is one entry of a user's chat list.
type PartnerStatus struct {
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}
