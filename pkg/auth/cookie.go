package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const CookieName = "reservou_session"

// SetCookie stores the session token: HttpOnly, SameSite=Strict, path "/",
// Secure when the codec was built for production.
func (c *Codec) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  c.now().Add(c.ttl),
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *Codec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Issue encodes p and writes it as the session cookie.
func (c *Codec) Issue(w http.ResponseWriter, p Payload) (string, error) {
	token, err := c.Encode(p)
	if err != nil {
		return "", err
	}
	c.SetCookie(w, token)
	return token, nil
}

// PayloadFromRequest returns nil, nil when no session cookie is present and
// an Unauthorized error when the cookie does not decode.
func (c *Codec) PayloadFromRequest(r *http.Request) (*Payload, error) {
	cookie, err := r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.Decode(cookie.Value)
}

type payloadKey struct{}

func WithPayload(ctx context.Context, p *Payload) context.Context {
	return context.WithValue(ctx, payloadKey{}, p)
}

// FromContext returns the session stored by the gate middleware, nil when unauthenticated.
func FromContext(ctx context.Context) *Payload {
	p, _ := ctx.Value(payloadKey{}).(*Payload)
	return p
}
