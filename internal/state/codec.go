package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teemow/calconnect/internal/integration"
)

// DefaultTTL bounds how long a user may sit on a consent screen.
const DefaultTTL = 15 * time.Minute

const issuer = "calconnect"

// Payload is what travels through the provider redirect.
type Payload struct {
	UserID  string
	AppType integration.AppType
}

type claims struct {
	UserID  string `json:"uid"`
	AppType string `json:"app,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies state tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec signing with secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("state secret must not be empty")
	}
	c := &Codec{
		secret: append([]byte{}, secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode returns a signed token for p. UserID is required.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.UserID == "" {
		return "", errors.New("state payload requires a user id")
	}
	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:  p.UserID,
		AppType: string(p.AppType),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Decode returns the payload carried by token, or the zero Payload if the
// token cannot be trusted. Callers check UserID.
func (c *Codec) Decode(token string) Payload {
	p, err := c.Verify(token)
	if err != nil {
		return Payload{}
	}
	return p
}

// Verify is Decode with the failure reason preserved, for logging.
func (c *Codec) Verify(token string) (Payload, error) {
	if token == "" {
		return Payload{}, errors.New("empty state")
	}
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Payload{}, mapJWTError(err)
	}
	return Payload{UserID: parsed.UserID, AppType: integration.AppType(parsed.AppType)}, nil
}

// Sentinel decode failures.
var (
	ErrTampered  = errors.New("state signature invalid")
	ErrExpired   = errors.New("state expired")
	ErrMalformed = errors.New("state malformed")
)

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTampered
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
