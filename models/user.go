package models

import (
	"time"
)

type UserRole string

const (
	RoleReader UserRole = "reader"
	RoleActor  UserRole = "actor"
	RoleAuthor UserRole = "author"
	RoleEditor UserRole = "editor"
)

// Valid reports whether r is one of the four known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleReader, RoleActor, RoleAuthor, RoleEditor:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns a copy without the password hash, safe to send to clients.
func (u User) Public() User {
	u.Password = ""
	return u
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, Name: u.Username, Role: u.Role}
}
