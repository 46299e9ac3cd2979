package group

import (
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

var (
	ErrNotFound       = apperr.NotFound("Group not found")
	ErrNotMember      = apperr.NotFound("User is not a member of this group")
	ErrRemoveCreator  = apperr.Validation("Cannot remove the group creator")
	ErrNameRequired   = apperr.Validation("Group name is required")
	ErrAccessDenied   = apperr.Forbidden("You are not a member of this group")
	ErrNotPrivileged  = apperr.Forbidden("Only faculty, HOD or admin can manage groups")
	ErrMemberNotFound = apperr.NotFound("User not found")
)

// Group is a class channel.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	Batch       string    `json:"batch"`
	Semester    string    `json:"semester"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Membership links a user to a group.
type Membership struct {
	GroupID  string
	UserID   string
	JoinedAt time.Time
}

// Member is a populated membership.
type Member struct {
	User     user.Summary `json:"user"`
	JoinedAt time.Time    `json:"joinedAt"`
}

// Counts are the sizes of a group's timelines.
type Counts struct {
	Messages    int `json:"messages"`
	Assignments int `json:"assignments"`
	Polls       int `json:"polls"`
}

// View is a group with its creator, members and content counts resolved.
type View struct {
	Group
	Creator user.Summary `json:"creator"`
	Members []Member     `json:"members"`
	Counts  Counts       `json:"counts"`
}

// CreateInput carries the fields of a new group.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Batch       string `json:"batch"`
	Semester    string `json:"semester"`
}
