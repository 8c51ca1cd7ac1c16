// Package identity provides anonymous per-device client identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
)

const (
	ClientCookieName   = "deskmate_client_id"
	clientCookieMaxAge = 90 * 24 * time.Hour
)

type contextKey int

const (
	clientIDKey contextKey = iota
	displayNameKey
)

var clientIDPattern = regexp.MustCompile(`^cl_[a-f0-9]{32}$`)

// ClientStore is the slice of the repository identity needs.
type ClientStore interface {
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	UpsertClient(ctx context.Context, client *domain.Client) error
	UpdateLastSeen(ctx context.Context, clientID string, lastSeen time.Time) error
}

// ClientIDFromContext extracts the client ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// DisplayNameFromContext extracts the client's display name.
func DisplayNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(displayNameKey).(string); ok {
		return v
	}
	return ""
}

// WithClient returns a context carrying the given identity.
func WithClient(ctx context.Context, clientID, displayName string) context.Context {
	ctx = context.WithValue(ctx, clientIDKey, clientID)
	return context.WithValue(ctx, displayNameKey, displayName)
}

func generateClientID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client id: %w", err)
	}
	return "cl_" + hex.EncodeToString(buf), nil
}

func isValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

func ensureClient(ctx context.Context, repo ClientStore, clientID string) (*domain.Client, error) {
	client, err := repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	now := time.Now()
	if client != nil {
		if err := repo.UpdateLastSeen(ctx, clientID, now); err != nil {
			return nil, fmt.Errorf("touch client: %w", err)
		}
		return client, nil
	}

	client = &domain.Client{
		ClientID:   clientID,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.UpsertClient(ctx, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func setClientCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(clientCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateClientID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(ClientCookieName); err == nil && isValidClientID(c.Value) {
		setClientCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateClientID()
	if err != nil {
		return "", err
	}
	setClientCookie(w, id, isDev)
	return id, nil
}

// Middleware resolves the client from its cookie, creating the client
// record on first contact.
func Middleware(repo ClientStore, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := getOrCreateClientID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish client identity"}`, http.StatusInternalServerError)
				return
			}

			client, err := ensureClient(r.Context(), repo, clientID)
			if err != nil {
				http.Error(w, `{"error":"failed to initialize client"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), clientID, client.DisplayName)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
