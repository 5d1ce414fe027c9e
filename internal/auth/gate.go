package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

var ErrInvalidPassword = errors.New("invalid admin password")

// Gate decides whether a request may mutate posts. It accepts the admin
// password itself or a session token issued by Login.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGate(secret string, ttl time.Duration) *Gate {
	return &Gate{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuing and checking tokens.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authorize checks an Authorization header value.
func (g *Gate) Authorize(header string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	credential := header[len(bearerPrefix):]
	if credential == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(credential), g.secret) == 1 {
		return true
	}
	return g.validToken(credential)
}

// Login exchanges the admin password for a signed session token.
func (g *Gate) Login(password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), g.secret) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := g.now()
	expires := now.Add(g.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (g *Gate) validToken(raw string) bool {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject("admin"),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	return err == nil && token.Valid
}
