package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps unknown-user logins as slow as wrong-password logins.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token  string  `json:"token"`
	Claims *Claims `json:"-"`
	User   User    `json:"user"`
}

// LoginService verifies credentials and issues session tokens.
type LoginService struct {
	users  UserRepository
	issuer *TokenIssuer
}

// NewLoginService constructs a login service.
func NewLoginService(users UserRepository, issuer *TokenIssuer) (*LoginService, error) {
	if users == nil {
		return nil, errors.New("login: nil user repository")
	}
	if issuer == nil {
		return nil, errors.New("login: nil token issuer")
	}
	return &LoginService{users: users, issuer: issuer}, nil
}

// Login returns a signed token for valid credentials and ErrInvalidCredentials otherwise.
func (s *LoginService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, claims, err := s.issuer.Issue(*user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Claims: claims, User: *user}, nil
}
