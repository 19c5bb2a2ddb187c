package auth

import (
	"errors"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/golang-jwt/jwt/v5"
)

const audience = "reservou"

var (
	ErrSessionExpired   = errors.New("session expired")
	ErrSignatureInvalid = errors.New("session signature invalid")
	ErrMalformed        = errors.New("session token malformed")
	ErrInvalidSession   = errors.New("session invalid")
)

// Payload is the session claim. An empty HID means the user has not set up a hotel yet.
type Payload struct {
	UID string `json:"uid"`
	HID string `json:"hid,omitempty"`
}

func (p *Payload) HasHotel() bool {
	return p != nil && p.HID != ""
}

type Claims struct {
	UID string `json:"uid"`
	HID string `json:"hid,omitempty"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCodec builds the session codec. secureCookie marks the session cookie Secure.
func NewCodec(secret string, ttl time.Duration, secureCookie bool) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secureCookie,
		now:    time.Now,
	}
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Encode(p Payload) (string, error) {
	if len(c.secret) == 0 {
		return "", apperror.Internal(errors.New("empty signing secret"), "encode session")
	}
	if p.UID == "" {
		return "", apperror.Internal(errors.New("empty uid"), "encode session")
	}

	now := c.now()
	claims := Claims{
		UID: p.UID,
		HID: p.HID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Audience:  []string{audience},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", apperror.Internal(err, "sign session")
	}
	return signed, nil
}

// Decode verifies signature and expiry. Every failure is Unauthorized; the
// wrapped sentinel tells the causes apart.
func (c *Codec) Decode(token string) (*Payload, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid || claims.UID == "" {
		return nil, apperror.UnauthorizedCause("invalid session, please sign in again", ErrInvalidSession)
	}

	return &Payload{UID: claims.UID, HID: claims.HID}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperror.UnauthorizedCause("your session has expired, please sign in again", ErrSessionExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperror.UnauthorizedCause("invalid token, signature could not be verified", ErrSignatureInvalid)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperror.UnauthorizedCause("malformed or invalid token", ErrMalformed)
	default:
		return apperror.UnauthorizedCause("invalid session, please sign in again", ErrInvalidSession)
	}
}
