package poll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

type openGroup string

func (g openGroup) CanAccess(_ context.Context, groupID string, _ auth.Actor) error {
	if groupID != string(g) {
		return apperr.NotFound("Group not found")
	}
	return nil
}

type stubDirectory struct{}

func (stubDirectory) Summaries(_ context.Context, ids []string) (map[string]user.Summary, error) {
	out := map[string]user.Summary{}
	for _, id := range ids {
		out[id] = user.Summary{ID: id, Name: id}
	}
	return out, nil
}

type recordingTimeline struct{ posted []string }

func (r *recordingTimeline) PostPoll(_ context.Context, groupID, senderID, pollID, question string) (message.Message, error) {
	r.posted = append(r.posted, pollID)
	return message.Message{ID: "m-" + pollID, GroupID: groupID, Type: message.KindPoll, PollID: pollID}, nil
}

var (
	now     = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	faculty = auth.Actor{ID: "prof", Role: auth.RoleFaculty}
	s1      = auth.Actor{ID: "s1", Role: auth.RoleStudent}
	s2      = auth.Actor{ID: "s2", Role: auth.RoleStudent}
	s3      = auth.Actor{ID: "s3", Role: auth.RoleStudent}
)

func newTestService(clock *time.Time) (*Service, *recordingTimeline) {
	tl := &recordingTimeline{}
	svc := NewService(NewMemoryRepository(), openGroup("g1"), stubDirectory{}, tl, nil, WithClock(func() time.Time { return *clock }))
	return svc, tl
}

func TestCreateValidation(t *testing.T) {
	clock := now
	svc, tl := newTestService(&clock)
	ctx := context.Background()
	past := now.Add(-time.Minute)

	tests := []struct {
		name  string
		actor auth.Actor
		in    CreateInput
		want  error
	}{
		{"student", s1, CreateInput{GroupID: "g1", Question: "Q", Options: []string{"a", "b"}}, ErrNotPrivileged},
		{"no question", faculty, CreateInput{GroupID: "g1", Options: []string{"a", "b"}}, ErrQuestionMissing},
		{"one option", faculty, CreateInput{GroupID: "g1", Question: "Q", Options: []string{"a", "  "}}, ErrTooFewOptions},
		{"past expiry", faculty, CreateInput{GroupID: "g1", Question: "Q", Options: []string{"a", "b"}, ExpiresAt: &past}, ErrExpiryInPast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, tl.posted)
}

func TestNewPollHasZeroPercentages(t *testing.T) {
	clock := now
	svc, tl := newTestService(&clock)

	p, err := svc.Create(context.Background(), faculty, CreateInput{GroupID: "g1", Question: "Extra class?", Options: []string{"Yes", "No"}})
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, tl.posted)
	assert.Zero(t, p.TotalVotes)
	require.Len(t, p.Options, 2)
	for _, o := range p.Options {
		assert.Zero(t, o.Percentage)
		assert.Zero(t, o.VoteCount)
	}
	assert.Equal(t, "prof", p.CreatedBy.ID)
}

func TestPollSummariesSkipUnknownIDs(t *testing.T) {
	clock := now
	expires := now.Add(time.Hour)
	opts := []ServiceOption{WithClock(func() time.Time { return clock })}
	svc := NewService(NewMemoryRepository(), openGroup("g1"), stubDirectory{}, &recordingTimeline{}, nil, opts...)
	ctx := context.Background()

	p, err := svc.Create(ctx, faculty, CreateInput{GroupID: "g1", Question: "Lab slot?", Options: []string{"Mon", "Tue"}, MultipleChoice: true, ExpiresAt: &expires})
	require.NoError(t, err)
	require.Len(t, p.Options, 2)
	assert.Equal(t, "Tue", p.Options[1].Text)

	sums, err := svc.PollSummaries(ctx, []string{p.ID, "gone", p.ID})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	got := sums[p.ID]
	assert.Equal(t, "Lab slot?", got.Question)
	assert.True(t, got.MultipleChoice)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))
}

func TestSingleChoiceVoting(t *testing.T) {
	clock := now
	svc, _ := newTestService(&clock)
	ctx := context.Background()

	p, err := svc.Create(ctx, faculty, CreateInput{GroupID: "g1", Question: "Pick one", Options: []string{"A", "B", "C"}})
	require.NoError(t, err)

	_, err = svc.Vote(ctx, faculty, p.ID, 0)
	assert.ErrorIs(t, err, ErrStudentsOnly)
	_, err = svc.Vote(ctx, s1, p.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = svc.Vote(ctx, s1, p.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = svc.Vote(ctx, s1, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Vote(ctx, s1, p.ID, 0)
	require.NoError(t, err)
	_, err = svc.Vote(ctx, s1, p.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	_, err = svc.Vote(ctx, s1, p.ID, 0)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	_, err = svc.Vote(ctx, s2, p.ID, 1)
	require.NoError(t, err)
	got, err := svc.Vote(ctx, s3, p.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, got.TotalVotes)
	assert.Equal(t, 33.33, got.Options[0].Percentage)
	assert.Equal(t, 66.67, got.Options[1].Percentage)
	assert.Equal(t, 0.0, got.Options[2].Percentage)
	assert.InDelta(t, 100, got.Options[0].Percentage+got.Options[1].Percentage+got.Options[2].Percentage, 0.02)
}

func TestMultipleChoiceVoting(t *testing.T) {
	clock := now
	svc, _ := newTestService(&clock)
	ctx := context.Background()

	p, err := svc.Create(ctx, faculty, CreateInput{GroupID: "g1", Question: "Which topics?", Options: []string{"TCP", "UDP", "IP"}, MultipleChoice: true})
	require.NoError(t, err)

	_, err = svc.Vote(ctx, s1, p.ID, 0)
	require.NoError(t, err)
	got, err := svc.Vote(ctx, s1, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalVotes)

	_, err = svc.Vote(ctx, s1, p.ID, 2)
	assert.ErrorIs(t, err, ErrOptionVoted)
}

func TestVotingClosesAtExpiry(t *testing.T) {
	clock := now
	svc, _ := newTestService(&clock)
	ctx := context.Background()
	expires := now.Add(time.Hour)

	p, err := svc.Create(ctx, faculty, CreateInput{GroupID: "g1", Question: "Q", Options: []string{"a", "b"}, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.False(t, p.Expired)

	clock = expires
	_, err = svc.Vote(ctx, s1, p.ID, 0)
	assert.ErrorIs(t, err, ErrExpired)

	got, err := svc.Get(ctx, s1, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Expired)
	assert.Zero(t, got.TotalVotes)

	list, err := svc.ListByGroup(ctx, s1, "g1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 100.0, Percentage(4, 4))
	assert.Equal(t, 14.29, Percentage(1, 7))
}
