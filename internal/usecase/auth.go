package usecase

import (
	"context"
	"crypto/subtle"
	"strings"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	pkgAuth "github.com/polkiloo/coursemart/internal/pkg/auth"
)

// OperatorCredentials identify the single billing operator.
type OperatorCredentials struct {
	Login        string
	PasswordHash string
}

// AuthUseCase handles operator authentication and token management.
type AuthUseCase struct {
	operator OperatorCredentials
	hasher   pkgAuth.PasswordHasher
	tokens   pkgAuth.Strategy
}

// NewAuthUseCase constructs AuthUseCase.
func NewAuthUseCase(operator OperatorCredentials, hasher pkgAuth.PasswordHasher, strategy pkgAuth.Strategy) *AuthUseCase {
	return &AuthUseCase{operator: operator, hasher: hasher, tokens: strategy}
}

// Authenticate validates operator credentials and returns auth token.
func (u *AuthUseCase) Authenticate(_ context.Context, login, password string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" || u.operator.PasswordHash == "" {
		return "", domainErrors.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(login), []byte(u.operator.Login)) != 1 {
		return "", domainErrors.ErrInvalidCredentials
	}

	if err := u.hasher.Compare(u.operator.PasswordHash, password); err != nil {
		return "", domainErrors.ErrInvalidCredentials
	}

	return u.tokens.IssueToken(login)
}

// ParseToken extracts operator login from provided token.
func (u *AuthUseCase) ParseToken(token string) (string, error) {
	if token == "" {
		return "", pkgAuth.ErrInvalidToken
	}
	return u.tokens.ParseToken(token)
}
