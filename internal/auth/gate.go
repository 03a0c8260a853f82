// Package auth resolves request credentials into principals and guards
// operations by role.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/go-bookstore/internal/models"
)

var ErrEmptySecret = errors.New("auth: signing secret is empty")

type claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Gate issues and verifies HS256 bearer tokens.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGate(secret string, ttl time.Duration) (*Gate, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Gate{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for user that expires after the gate's TTL.
func (g *Gate) Issue(user *models.User) (string, error) {
	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	})

	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate returns the principal a credential identifies. Malformed,
// expired or wrongly signed credentials identify nobody.
func (g *Gate) Authenticate(credential string) (*models.Principal, bool) {
	if credential == "" {
		return nil, false
	}

	var c claims
	_, err := jwt.ParseWithClaims(credential, &c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, false
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 || !c.Role.Valid() {
		return nil, false
	}

	return &models.Principal{UserID: userID, Email: c.Email, Role: c.Role}, true
}
