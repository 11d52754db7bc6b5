// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is the login identifier and Username is the public handle; both are
// UNIQUE in the database. PasswordHash is never serialised (json:"-") so a
// User can be returned directly from the repository without leaking it.
//
// GitHubID is nil for users who registered with email and password. Accounts
// created through GitHub OAuth carry the numeric GitHub user ID, which is
// stable even if the GitHub login changes.
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Username     string    `json:"username"   db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	Avatar       string    `json:"avatar"     db:"avatar"` // image URL, empty if unset
	PasswordHash string    `json:"-"          db:"password_hash"`
	GitHubID     *int64    `json:"-"          db:"github_id"`
	CreatedAt    time.Time `json:"-"          db:"created_at"`
}

// Profile is the public representation of a user as seen by a viewer.
// IsSubscribed is true when the viewer follows this user.
type Profile struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

// NewProfile builds the public view of u. An empty avatar is rendered as null.
func NewProfile(u *User, subscribed bool) Profile {
	p := Profile{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
	if u.Avatar != "" {
		avatar := u.Avatar
		p.Avatar = &avatar
	}
	return p
}

// Subscription is an author as listed on the follower's subscriptions page.
type Subscription struct {
	Profile
	Recipes      []RecipeShort `json:"recipes"`
	RecipesCount int           `json:"recipes_count"`
}

// Caller-facing reasons for rejected follow transitions. Both the service
// pre-checks and the storage layer's constraint mapping use them, so a lost
// race reads the same as a pre-check failure.
const (
	MsgSelfFollow      = "you cannot subscribe to yourself"
	MsgAlreadyFollowed = "you are already subscribed to this author"
	MsgNotFollowed     = "subscription not found"
)
