package inventory

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new hashes
var PasswordCost = bcrypt.DefaultCost

// HashPassword hashes a plain-text password
// パスワードをハッシュ化
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticator checks credentials against the ledger's users
// 台帳のユーザーに対して認証情報を照合
type Authenticator struct {
	ledger *Ledger
}

// NewAuthenticator creates an authenticator over the ledger
func NewAuthenticator(ledger *Ledger) *Authenticator {
	return &Authenticator{ledger: ledger}
}

// Login returns the matching user without its hash, or ErrInvalidCredentials
// 一致したユーザー（ハッシュなし）を返す
func (a *Authenticator) Login(ctx context.Context, email, password string) (*User, error) {
	users, err := a.ledger.Users(ctx)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	for _, u := range users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		public := u.Public()
		return &public, nil
	}
	return nil, ErrInvalidCredentials
}
