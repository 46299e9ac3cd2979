package poll

import (
	"math"
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

var (
	ErrNotFound        = apperr.NotFound("Poll not found")
	ErrExpired         = apperr.Validation("Poll has expired")
	ErrInvalidOption   = apperr.Validation("Invalid option")
	ErrAlreadyVoted    = apperr.Validation("You have already voted in this poll")
	ErrOptionVoted     = apperr.Validation("You have already voted for this option")
	ErrTooFewOptions   = apperr.Validation("Poll must have at least 2 options")
	ErrQuestionMissing = apperr.Validation("Question is required")
	ErrExpiryInPast    = apperr.Validation("Expiry must be in the future")
	ErrStudentsOnly    = apperr.Forbidden("Only students can vote")
	ErrNotPrivileged   = apperr.Forbidden("Only faculty, HOD or admin can create polls")
)

// Poll is a question posted to a group.
type Poll struct {
	ID             string       `json:"id"`
	GroupID        string       `json:"groupId"`
	CreatedByID    string       `json:"-"`
	CreatedBy      user.Summary `json:"createdBy"`
	Question       string       `json:"question"`
	Options        []Option     `json:"options"`
	MultipleChoice bool         `json:"multipleChoice"`
	ExpiresAt      *time.Time   `json:"expiresAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`

	TotalVotes int  `json:"totalVotes"`
	Expired    bool `json:"expired"`
}

// Option is one answer of a poll with its votes.
type Option struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Votes      []Vote  `json:"votes"`
	VoteCount  int     `json:"voteCount"`
	Percentage float64 `json:"percentage"`
}

// Vote is a user's choice of an option.
type Vote struct {
	UserID  string    `json:"user"`
	VotedAt time.Time `json:"votedAt"`
}

// CreateInput carries the fields of a new poll.
type CreateInput struct {
	GroupID        string
	Question       string
	Options        []string
	MultipleChoice bool
	ExpiresAt      *time.Time
}

// ExpiredAt reports whether voting is closed at now.
func (p Poll) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Tally fills vote counts, the total and per-option percentages rounded to
// two decimals. Every percentage is 0 when no votes were cast.
func Tally(p *Poll) {
	p.TotalVotes = 0
	for i := range p.Options {
		p.Options[i].VoteCount = len(p.Options[i].Votes)
		p.TotalVotes += p.Options[i].VoteCount
	}
	for i := range p.Options {
		p.Options[i].Percentage = Percentage(p.Options[i].VoteCount, p.TotalVotes)
	}
}

// Percentage returns votes as a share of total, 0 when total is 0.
func Percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*10000) / 100
}

// HasVoted reports whether userID voted for any option.
func (p Poll) HasVoted(userID string) bool {
	for _, o := range p.Options {
		for _, v := range o.Votes {
			if v.UserID == userID {
				return true
			}
		}
	}
	return false
}
