package service

import (
	"clouddb/internal/core"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lightningnetwork/lnd/clock"
)

// TokenIssuer signs session tokens for HTTP callers. The token subject is
// the user id.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (t *TokenIssuer) Issue(session *core.Session) (string, error) {
	if session == nil {
		return "", core.ErrNotAuthenticated
	}
	now := t.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   session.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates a token and returns the session it carries.
func (t *TokenIssuer) Parse(tokenStr string) (*core.Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.clock.Now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, core.ErrNotAuthenticated
	}
	return &core.Session{UserID: claims.Subject}, nil
}
