// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials signals a failed login or a bad token.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	ID        int64
	Username  string
	Superuser bool
}

// AuthService registers accounts and issues signed session tokens.
type AuthService struct {
	users  UserRepository
	secret []byte

	tokenTTL time.Duration
}

// NewAuthService creates the authentication service. Tokens are HMAC-signed
// with the secret and live for a week.
func NewAuthService(users UserRepository, secret []byte) *AuthService {
	return &AuthService{
		users:    users,
		secret:   secret,
		tokenTTL: 7 * 24 * time.Hour,
	}
}

// Register creates an account with a hashed password.
func (a *AuthService) Register(username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "must not be empty"}
	}

	if len(password) < 8 {
		return nil, &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
	}

	if err := a.users.CreateUser(user); err != nil {
		if IsUniqueViolation(err) {
			return nil, &ValidationError{Field: "username", Message: "already taken"}
		}

		return nil, err
	}

	return user, nil
}

// Login verifies the password and returns a signed token.
func (a *AuthService) Login(username, password string) (string, error) {
	user, err := a.users.GetUserByUsername(username)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}

	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return a.issueToken(user)
}

func (a *AuthService) issueToken(user *User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":       user.ID,
		"username":  user.Username,
		"superuser": user.Superuser,
		"iat":       now.Unix(),
		"exp":       now.Add(a.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ParseToken verifies a token and returns the caller's identity.
func (a *AuthService) ParseToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	username, _ := claims["username"].(string)
	superuser, _ := claims["superuser"].(bool)

	return &Identity{
		ID:        int64(sub),
		Username:  username,
		Superuser: superuser,
	}, nil
}
