package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims is the identity carried by a session credential.
type SessionClaims struct {
	AccountID   string `json:"account_id"`
	Handle      string `json:"handle"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
}

// Session is a signed credential and its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionIssuer signs session credentials.
type SessionIssuer interface {
	Issue(claims SessionClaims, ttl time.Duration) (*Session, error)
}

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	SessionClaims
}

// JWTSessionIssuer issues and parses HS256 session tokens.
type JWTSessionIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTSessionIssuer(secret, issuer string) *JWTSessionIssuer {
	return &JWTSessionIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (j *JWTSessionIssuer) Issue(sc SessionClaims, ttl time.Duration) (*Session, error) {
	now := j.now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   sc.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionClaims: sc,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns its claims.
func (j *JWTSessionIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
