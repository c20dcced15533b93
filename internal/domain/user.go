package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user of the platform.
// LeetCodeUsername is the linked external judge account; participants
// without one are skipped by bulk sync.
type User struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email            string    `json:"email" gorm:"uniqueIndex;not null"`
	Username         string    `json:"username" gorm:"not null"`
	PasswordHash     string    `json:"-" gorm:"not null"`
	LeetCodeUsername string    `json:"leetcode_username" gorm:"index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relationships
	CreatedContests []Contest       `json:"-" gorm:"foreignKey:CreatedBy"`
	Participations  []Participation `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasLinkedAccount reports whether the user linked a judge account
func (u *User) HasLinkedAccount() bool {
	return u.LeetCodeUsername != ""
}

// UserRepository defines the interface for user data access
// This abstraction allows for easy testing and swapping implementations
type UserRepository interface {
	Create(user *User) error
	FindByID(id uuid.UUID) (*User, error)
	FindByEmail(email string) (*User, error)
	Update(user *User) error
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
}

// LinkAccountRequest represents the data needed to link a judge account
type LinkAccountRequest struct {
	LeetCodeUsername string `json:"leetcode_username" binding:"required,min=1,max=64"`
}

// UserResponse represents the public user data returned by the API
type UserResponse struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	LeetCodeUsername string    `json:"leetcode_username"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToResponse converts a User to a UserResponse (hides sensitive data)
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		LeetCodeUsername: u.LeetCodeUsername,
		CreatedAt:        u.CreatedAt,
	}
}
