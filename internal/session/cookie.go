package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "budget_session"

var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	jwt.RegisteredClaims
	State string `json:"st"`
	View  View   `json:"view,omitempty"`
	Tab   Tab    `json:"tab,omitempty"`
}

// Codec signs sessions into HS256 tokens carried by an HttpOnly cookie.
type Codec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithSecureCookie marks the cookie Secure, for deployments behind TLS.
func WithSecureCookie(secure bool) CodecOption {
	return func(c *Codec) { c.secure = secure }
}

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, ttl time.Duration, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	c := &Codec{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Encode(s Session) (string, error) {
	now := c.now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.User,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		State: s.State.String(),
		View:  s.View,
		Tab:   s.Tab,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (c *Codec) Decode(token string) (Session, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return New(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	st, err := parseState(cl.State)
	if err != nil {
		return New(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	s := Session{State: st, User: cl.Subject, View: ParseView(string(cl.View)), Tab: ParseTab(string(cl.Tab))}
	if st == LoggedIn && s.User == "" {
		return New(), fmt.Errorf("%w: %v", ErrInvalidToken, ErrNoUser)
	}
	if st != LoggedIn {
		s.User = ""
	}
	return s, nil
}

// Read returns the session carried by the request. A missing, expired or
// tampered cookie yields a fresh logged-out session.
func (c *Codec) Read(r *http.Request) Session {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return New()
	}
	s, err := c.Decode(ck.Value)
	if err != nil {
		return New()
	}
	return s
}

// Write stores s in the response cookie. A logged-out session with default
// navigation clears the cookie instead.
func (c *Codec) Write(w http.ResponseWriter, s Session) error {
	if s == New() {
		c.Clear(w)
		return nil
	}
	token, err := c.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  c.now().Add(c.ttl),
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
