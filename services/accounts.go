package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/store"
	"go.uber.org/zap"
)

// WelcomeMailer sends the post-registration mail.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, email, name string) error
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

type AccountService struct {
	users  UserStore
	tokens *auth.Issuer
	mailer WelcomeMailer
	now    func() time.Time
}

// NewAccountService wires the credential store and session issuer. mailer
// may be nil, in which case no welcome mail is sent.
func NewAccountService(users UserStore, tokens *auth.Issuer, mailer WelcomeMailer) *AccountService {
	return &AccountService{users: users, tokens: tokens, mailer: mailer, now: time.Now}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return models.User{}, apperr.Validation("All fields are required.")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return models.User{}, apperr.Validation("Password must be at most 72 bytes.")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, apperr.Internal("An error occurred during registration.", err)
	}

	u := models.User{Name: name, Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.users.Create(wctx, &u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return models.User{}, apperr.Conflict("User with this email already exists.")
		}
		zap.L().Error("create user", zap.Error(err))
		return models.User{}, apperr.Internal("An error occurred during registration.", err)
	}

	metrics.Registrations.Inc()
	zap.L().Info("user registered", zap.String("user_id", u.ID.Hex()))

	if s.mailer != nil {
		go s.sendWelcome(u.Email, u.Name)
	}
	return u, nil
}

// sendWelcome runs detached from the request; failures are only logged.
func (s *AccountService) sendWelcome(email, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.mailer.SendWelcome(ctx, email, name); err != nil {
		zap.L().Warn("welcome mail failed", zap.String("email", email), zap.Error(err))
	}
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords get the same answer.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (Session, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return Session{}, apperr.Validation("Missing credentials")
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		zap.L().Error("find user", zap.Error(err))
		return Session{}, apperr.Internal("Sign in failed", err)
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return Session{}, apperr.Unauthorized("Invalid email or password")
	}

	id := auth.Identity{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		return Session{}, apperr.Internal("Sign in failed", err)
	}
	return Session{Token: token, ExpiresAt: exp, User: id}, nil
}
