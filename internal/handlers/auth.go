package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go/attribute"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/observability"
)

type userContextKey struct{}

const bearerPrefix = "Bearer "

// RequireAuth validates the bearer token and puts the caller's user id into
// the request context. Checkout endpoints never run without it.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, bearerPrefix) {
			writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "missing bearer token"}})
			return
		}

		userID, err := h.parseToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			h.loggerFromContext(ctx).Warn("rejected bearer token", "error", err)
			writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "invalid bearer token"}})
			return
		}

		observability.MeterFromContext(ctx).SetAttributes(attribute.String("user.id", userID.String()))
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userContextKey{}, userID)))
	})
}

func (h *Handlers) parseToken(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw,
		func(*jwt.Token) (any, error) { return []byte(h.config.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read token subject: %w", err)
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id: %w", err)
	}
	return userID, nil
}

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userContextKey{}).(uuid.UUID)
	return userID, ok
}
