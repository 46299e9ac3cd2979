package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
)

// RegisterInput is a self-service or provisioned account request.
type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
	RegdNo   string `json:"regdno"`
	Batch    string `json:"batch"`
	Semester string `json:"semester"`
	Subject  string `json:"subject"`
}

// Session is returned by Login.
type Session struct {
	Tokens auth.TokenPair `json:"tokens"`
	User   User           `json:"user"`
}

// Service implements registration, login and account approval.
type Service struct {
	repo       Repository
	tokens     *auth.Issuer
	logger     *slog.Logger
	now        func() time.Time
	bcryptCost int
}

// Option customizes a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, tokens *auth.Issuer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, tokens: tokens, logger: logger, now: time.Now, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unapproved account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	return s.create(ctx, in, false)
}

// Provision creates an account directly, optionally pre-approved. Used by the admin CLI.
func (s *Service) Provision(ctx context.Context, in RegisterInput, approved bool) (User, error) {
	return s.create(ctx, in, approved)
}

func (s *Service) create(ctx context.Context, in RegisterInput, approved bool) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateRegistration(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return User{}, apperr.Internal("hash password", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Approved:     approved,
		RegdNo:       strings.TrimSpace(in.RegdNo),
		Batch:        strings.TrimSpace(in.Batch),
		Semester:     strings.TrimSpace(in.Semester),
		Subject:      strings.TrimSpace(in.Subject),
		CreatedAt:    s.now().UTC(),
	}
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user registered", "user_id", created.ID, "role", created.Role, "approved", created.Approved)
	return created, nil
}

func validateRegistration(in RegisterInput) error {
	switch {
	case in.Name == "":
		return apperr.Validation("Name is required")
	case in.Email == "":
		return apperr.Validation("Email is required")
	case len(in.Password) < 6:
		return apperr.Validation("Password must be at least 6 characters")
	case !auth.ValidRole(in.Role):
		return apperr.Validation("Invalid role")
	}
	if in.Role == auth.RoleStudent && (in.RegdNo == "" || in.Batch == "" || in.Semester == "") {
		return apperr.Validation("Students must provide registration number, batch and semester")
	}
	if in.Role == auth.RoleFaculty && in.Subject == "" {
		return apperr.Validation("Faculty must provide a subject")
	}
	return nil
}

// Login verifies credentials and issues tokens for approved accounts.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrBadCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrBadCredentials
	}
	if !u.Approved {
		return Session{}, ErrPendingApproval
	}
	pair, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, apperr.Internal("issue tokens", err)
	}
	return Session{Tokens: pair, User: u}, nil
}

// Refresh exchanges a refresh token for a new pair. The role is re-read so
// approval or role changes take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.UseRefresh)
	if err != nil {
		return auth.TokenPair{}, apperr.Unauthorized("Invalid refresh token")
	}
	u, err := s.repo.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return auth.TokenPair{}, apperr.Unauthorized("Invalid refresh token")
	}
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !u.Approved {
		return auth.TokenPair{}, ErrPendingApproval
	}
	pair, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return auth.TokenPair{}, apperr.Internal("issue tokens", err)
	}
	return pair, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// Summaries resolves user references. Unknown ids map to a bare summary.
func (s *Service) Summaries(ctx context.Context, ids []string) (map[string]Summary, error) {
	users, err := s.repo.GetMany(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]Summary, len(ids))
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok && id != "" {
			out[id] = Summary{ID: id}
		}
	}
	return out, nil
}

// ListPending returns accounts awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	pending := false
	return s.repo.List(ctx, Filter{Approved: &pending})
}

// ListAll returns every account.
func (s *Service) ListAll(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx, Filter{})
}

// ListStudents returns approved students, optionally restricted to a cohort.
func (s *Service) ListStudents(ctx context.Context, batch, semester string) ([]User, error) {
	approved := true
	return s.repo.List(ctx, Filter{Role: auth.RoleStudent, Approved: &approved, Batch: batch, Semester: semester})
}

// Approve enables login for an account.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, id string) (User, error) {
	if err := s.repo.SetApproved(ctx, id); err != nil {
		return User{}, err
	}
	s.logger.Info("user approved", "user_id", id, "by", actor.ID)
	return s.repo.GetByID(ctx, id)
}

// Reject removes a pending registration.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Approved {
		return ErrAlreadyApproved
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("reject user: %w", err)
	}
	s.logger.Info("user rejected", "user_id", id, "by", actor.ID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
