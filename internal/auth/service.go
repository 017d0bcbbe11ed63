package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/config"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// UserStore is the persistence surface the service needs
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id types.ID) (*User, error)
}

// Service handles account registration and login
type Service struct {
	repo     UserStore
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates a new auth service
func NewService(repo UserStore, cfg config.AuthConfig) *Service {
	return &Service{
		repo:     repo,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: time.Duration(cfg.TokenTTLHours) * time.Hour,
	}
}

// RegisterParams carries a new account request
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Role     string
	Region   string
}

// LoginResult bundles the token with the authenticated user
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if params.Email == "" || params.Name == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"email": "email and name are required",
		})
	}
	if len(params.Password) < 8 {
		return nil, errors.Validation("validation failed", map[string]string{
			"password": "must be at least 8 characters",
		})
	}

	role, err := authz.ParseRole(params.Role)
	if err != nil {
		return nil, errors.Validation("validation failed", map[string]string{
			"role": err.Error(),
		})
	}

	var region types.Region
	if params.Region != "" {
		region, err = types.ParseRegion(params.Region)
		if err != nil {
			return nil, errors.Validation("validation failed", map[string]string{
				"region": err.Error(),
			})
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user := &User{
		ID:           types.NewID(),
		Email:        params.Email,
		PasswordHash: string(hash),
		Name:         params.Name,
		Role:         role,
		Region:       region,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login authenticates a user and issues a signed token
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Wrong email and wrong password are indistinguishable
		if errors.Is(err, errors.ErrNotFound) {
			return LoginResult{}, errors.Unauthorized("invalid credentials")
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, errors.Unauthorized("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, User: user}, nil
}

func (s *Service) issueToken(user *User) (string, error) {
	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Role: string(user.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}
