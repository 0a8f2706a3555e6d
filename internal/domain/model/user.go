// Package model holds the domain models of the vault.
package model

import "time"

// User is a registered vault account.
// Created at registration and never mutated or deleted afterwards.
type User struct {
	// ID: UUID of the user
	ID string
	// Email: unique, stored lower-cased
	Email string
	// Name: optional display name
	Name *string
	// PasswordHash: bcrypt hash of the password
	PasswordHash string
	// CreatedAt: registration time
	CreatedAt time.Time
}
