package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"tunevault/core/apperr"
	"tunevault/logger"
	"tunevault/model"
	"tunevault/repository"
)

// ErrBadCredentials is returned for an unknown user or a wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

const minPasswordLen = 8

// Session is the result of a successful register or login.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Service registers users and logs them in.
type Service struct {
	users  repository.UserRepository
	tokens *Tokens
}

// NewService creates the account service.
func NewService(users repository.UserRepository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a user. A taken username or email is apperr.ErrConflict.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("user registered", logger.Int64("userID", user.ID), logger.String("username", username))
	return s.session(user)
}

// Login checks credentials. Unknown user and wrong password are the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		logger.Warn("login rejected", logger.String("username", username))
		return nil, ErrBadCredentials
	}
	return s.session(user)
}

func (s *Service) session(user *model.User) (*Session, error) {
	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
