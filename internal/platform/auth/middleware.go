package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ownerKey contextKey = "owner"
	tokenKey contextKey = "bearer_token"
)

// Claims carries the registered JWT claims; the subject identifies the
// clinician whose drafts are being edited.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// JWTConfig configures bearer-token verification.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTMiddleware verifies the Authorization bearer token, stores the token
// subject as the draft owner and keeps the raw token for forwarding to the
// report backend.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := extractBearer(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return cfg.Secret, nil
			}, jwt.WithLeeway(30*time.Second))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid issuer")
			}
			if cfg.Audience != "" && !containsAudience(claims.Audience, cfg.Audience) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid audience")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			c.Set("owner", claims.Subject)
			ctx := context.WithValue(c.Request().Context(), ownerKey, claims.Subject)
			ctx = context.WithValue(ctx, tokenKey, raw)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevAuthMiddleware gives every request a fixed owner. Development only.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := "dev-user"
			if h := c.Request().Header.Get("X-Dev-Owner"); h != "" {
				owner = h
			}
			c.Set("owner", owner)
			ctx := context.WithValue(c.Request().Context(), ownerKey, owner)
			if raw, err := extractBearer(c.Request()); err == nil {
				ctx = context.WithValue(ctx, tokenKey, raw)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// OwnerFromContext returns the authenticated owner, or "" if none.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// TokenFromContext returns the raw bearer token for pass-through, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// ContextWithToken attaches a raw bearer token, mainly for outbound calls
// made outside the request middleware.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("Authorization header is not a bearer token")
	}
	return parts[1], nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
