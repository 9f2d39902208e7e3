package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

var ErrUserExists = errors.New("user already exists")

type AuthService struct {
	users  ports.UserRepository
	tokens ports.TokenIssuer
	cost   int
}

func NewAuthService(users ports.UserRepository, tokens ports.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// WithHashCost returns a copy using cost for new password hashes.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	next := *s
	next.cost = cost
	return &next
}

func (s *AuthService) AddUser(ctx context.Context, cmd AddUserCommand) (domain.User, error) {
	login := strings.TrimSpace(cmd.Login)
	if login == "" {
		return domain.User{}, errors.New("login is required")
	}
	if cmd.Password == "" {
		return domain.User{}, errors.New("password is required")
	}

	if _, err := s.users.GetByLogin(ctx, login); err == nil {
		return domain.User{}, fmt.Errorf("%w: %s", ErrUserExists, login)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("get user by login: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           domain.UserID(ulid.Make().String()),
		Login:        login,
		PasswordHash: string(hash),
		FullName:     cmd.FullName,
		Color:        cmd.Color,
		ImageURL:     cmd.ImageURL,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}

	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// Login checks the credentials and issues a session token. Unknown logins and
// wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, login, password string) (domain.LoginResult, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.LoginResult{}, domain.ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("get user by login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}

	return domain.LoginResult{UserID: user.ID, Token: token}, nil
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify session token: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, fmt.Errorf("%w: unknown subject", domain.ErrInvalidToken)
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}
