package user

import (
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
)

var (
	ErrNotFound        = apperr.NotFound("User not found")
	ErrEmailTaken      = apperr.Validation("Email already registered")
	ErrBadCredentials  = apperr.Unauthorized("Invalid email or password")
	ErrPendingApproval = apperr.Forbidden("Account pending approval")
	ErrAlreadyApproved = apperr.Validation("Only pending accounts can be rejected")
)

// User is an account in the directory.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Approved     bool      `json:"approved"`
	RegdNo       string    `json:"regdno,omitempty"`
	Batch        string    `json:"batch,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the populated form of a user reference.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	RegdNo string `json:"regdno,omitempty"`
}

// Summary projects u to its reference form.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, RegdNo: u.RegdNo}
}

// Filter narrows directory listings. Empty fields match everything.
type Filter struct {
	Role     string
	Approved *bool
	Batch    string
	Semester string
}

func (f Filter) match(u User) bool {
	switch {
	case f.Role != "" && u.Role != f.Role:
		return false
	case f.Approved != nil && u.Approved != *f.Approved:
		return false
	case f.Batch != "" && u.Batch != f.Batch:
		return false
	case f.Semester != "" && u.Semester != f.Semester:
		return false
	}
	return true
}
