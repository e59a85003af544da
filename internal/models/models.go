package models

import "time"

// DefaultAvatar is assigned to users that never uploaded one
const DefaultAvatar = "https://res.cloudinary.com/dec2xrpad/image/upload/v1594949863/avatar.png"

// Gender is the optional gender of a profile
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Profile holds the free-form part of a user's profile
type Profile struct {
	Website     string `json:"website"`
	Bio         string `json:"bio"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Gender      Gender `json:"gender"`
}

// User represents an account in the system
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-"`
	Avatar         string    `json:"avatar"`
	Profile        Profile   `json:"profile"`
	Verified       bool      `json:"verified"`
	VerifyToken    string    `json:"-"`
	ResetToken     string    `json:"-"`
	ResetExpiresAt time.Time `json:"-"`
	GithubID       int64     `json:"-"`
	PushToken      string    `json:"-"`
	Posts          []string  `json:"posts"`
	PostCount      int       `json:"post_count"`
	Saved          []string  `json:"saved,omitempty"`
	Followers      []string  `json:"followers"`
	FollowerCount  int       `json:"follower_count"`
	Following      []string  `json:"following"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasPassword reports whether the account can log in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Public returns a copy safe to show to other users
func (u *User) Public() *User {
	pub := *u
	pub.Email = ""
	pub.Saved = nil
	pub.Profile.PhoneNumber = ""
	return &pub
}

// ProfileUpdate carries the editable profile fields
type ProfileUpdate struct {
	Name    string
	Email   string
	Profile Profile
}

// Post represents a user's post
type Post struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user"`
	Caption      string     `json:"caption"`
	Image        string     `json:"image,omitempty"`
	Likes        []string   `json:"likes"`
	LikeCount    int        `json:"like_count"`
	Comments     []string   `json:"comments"`
	CommentCount int        `json:"comment_count"`
	CreatedAt    time.Time  `json:"created_at"`
	Thread       []*Comment `json:"thread,omitempty"`
}

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	PostID    string    `json:"post"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Claims is the identity carried by a session token
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
