package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DKEncrypted  string    `db:"dk_encrypted" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
