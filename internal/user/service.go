package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/session"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired or revoked")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	Refresh(ctx context.Context, refreshToken string) (*User, string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	GetByID(ctx context.Context, userID int) (*User, error)
}

type service struct {
	repo      Repository
	sessions  session.Store
	jwtSecret string
}

func NewService(repo Repository, sessions session.Store, jwtSecret string) Service {
	return &service{
		repo:      repo,
		sessions:  sessions,
		jwtSecret: jwtSecret,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	user, err := s.repo.Create(ctx, req.Name, req.Email, passwordHash, auth.RoleUser, req.Phone)
	if err != nil {
		return nil, "", "", err
	}

	access, refresh, err := s.startSession(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	logger.Info("user registered", "user_id", user.ID)
	return user, access, refresh, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	access, refresh, err := s.startSession(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	return user, access, refresh, nil
}

// Refresh rotates the session behind refreshToken. The old session is
// cleared so a refresh token can be used once.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*User, string, string, error) {
	claims, err := auth.ParseRefreshToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, "", "", err
	}

	sess, err := s.sessions.Load(ctx, claims.SessionID())
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, "", "", ErrSessionExpired
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, "", "", ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, "", "", err
	}

	if err := s.sessions.Clear(ctx, sess.ID); err != nil {
		return nil, "", "", fmt.Errorf("clear session: %w", err)
	}

	access, refresh, err := s.startSession(ctx, user)
	if err != nil {
		return nil, "", "", err
	}
	return user, access, refresh, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := auth.ParseRefreshToken(refreshToken, s.jwtSecret)
	if err != nil {
		return err
	}
	return s.sessions.Clear(ctx, claims.SessionID())
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) startSession(ctx context.Context, user *User) (string, string, error) {
	sess := session.New(user.ID, user.Email, user.Role, auth.RefreshTokenTTL)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return "", "", fmt.Errorf("save session: %w", err)
	}

	return auth.GenerateTokens(user.ID, user.Email, user.Role, sess.ID, s.jwtSecret)
}
