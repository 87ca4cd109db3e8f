package middleware

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

type contextKey string

const visitorContextKey contextKey = "visitor"

const visitorCookieName = "snooze_visitor"

// visitorCookieMaxAge keeps a visitor's identity for a year, matching how
// long a browser keeps local storage in practice.
const visitorCookieMaxAge = 365 * 24 * 60 * 60

// ErrShortSecret is returned when the cookie secret is too short to derive keys from.
var ErrShortSecret = errors.New("cookie secret must be at least 32 bytes")

// NewVisitorCodec derives the cookie signing and encryption keys from secret.
// PRE: len(secret) >= 32
// POST: Returns a codec that signs (HMAC-SHA256) and encrypts (AES-256) cookie values
func NewVisitorCodec(secret []byte) (*securecookie.SecureCookie, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("snooze visitor cookie"))
	hashKey := make([]byte, 32)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("derive hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("derive block key: %w", err)
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(visitorCookieMaxAge)
	return codec, nil
}

// Visitor returns middleware that identifies the browser with a sealed
// cookie holding a random visitor ID, issuing one if missing or invalid.
// Every request that reaches next has a visitor ID in its context.
func Visitor(codec *securecookie.SecureCookie, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(visitorCookieName); err == nil {
				if err := codec.Decode(visitorCookieName, cookie.Value, &id); err != nil {
					slog.Debug("visitor_event", "event", "cookie_rejected", "error", err.Error())
					id = ""
				}
			}
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
				encoded, err := codec.Encode(visitorCookieName, id)
				if err != nil {
					slog.Error("internal_error", "op", "encode visitor cookie", "error", err.Error())
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookieName,
					Value:    encoded,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					Path:     "/",
					MaxAge:   visitorCookieMaxAge,
				})
			}
			next.ServeHTTP(w, r.WithContext(ContextWithVisitor(r.Context(), id)))
		})
	}
}

// GetVisitorFromContext extracts the visitor ID from the request context.
func GetVisitorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorContextKey).(string)
	return id, ok && id != ""
}

// ContextWithVisitor returns a context carrying the given visitor ID.
func ContextWithVisitor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorContextKey, id)
}
