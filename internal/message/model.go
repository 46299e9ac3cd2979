package message

import (
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

var (
	ErrNotFound     = apperr.NotFound("Message not found")
	ErrInvalidType  = apperr.Validation("Invalid message type")
	ErrCannotDelete = apperr.Forbidden("Unauthorized")
)

// Message is one entry in a group timeline.
type Message struct {
	ID           string           `json:"id"`
	GroupID      string           `json:"groupId"`
	SenderID     string           `json:"-"`
	Sender       user.Summary     `json:"sender"`
	Content      string           `json:"content"`
	Type         Kind             `json:"type"`
	File         *upload.FileMeta `json:"file,omitempty"`
	YoutubeURL   string           `json:"youtubeUrl,omitempty"`
	AssignmentID string             `json:"assignmentId,omitempty"`
	PollID       string             `json:"pollId,omitempty"`
	Assignment   *AssignmentSummary `json:"assignment,omitempty"`
	Poll         *PollSummary       `json:"poll,omitempty"`
	ReadBy       []Read           `json:"readBy"`
	CreatedAt    time.Time        `json:"createdAt"`
	Preview      string           `json:"preview"`
}

// AssignmentSummary is the populated form of an assignment reference.
type AssignmentSummary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	MaxMarks int       `json:"maxMarks"`
}

// PollSummary is the populated form of a poll reference.
type PollSummary struct {
	ID             string     `json:"id"`
	Question       string     `json:"question"`
	MultipleChoice bool       `json:"multipleChoice"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Read records that a user has seen a message.
type Read struct {
	UserID string    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

// SendInput is a client request to post a message.
type SendInput struct {
	GroupID    string
	Content    string
	Type       string
	YoutubeURL string
}
