package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionKeyUserID  = "authenticatedUserID"
	sessionKeyIsCoach = "isCoach"
)

// identityClaims is what the identity provider asserts about a user.
type identityClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Coach bool   `json:"coach"`
	jwt.RegisteredClaims
}

// sessionPOST exchanges a signed identity token for a session cookie. The
// user record is created or refreshed from the token claims.
func (app *application) sessionPOST(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Token string `json:"token"`
	}
	if !app.decodeJSON(w, r, &form) {
		return
	}

	claims, err := app.verifyIdentityToken(form.Token)
	if err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelInfo, "rejected identity token", slog.Any("error", err))
		app.clientError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	userID, err := app.upsertUser(r.Context(), claims)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	// Renew the session token on privilege change to avoid session fixation.
	if err = app.sessionManager.RenewToken(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.sessionManager.Put(r.Context(), sessionKeyUserID, userID)
	app.sessionManager.Put(r.Context(), sessionKeyIsCoach, claims.Coach)

	app.writeJSON(w, r, http.StatusOK, map[string]any{
		"user_id":  userID,
		"is_coach": claims.Coach,
	})
}

func (app *application) verifyIdentityToken(tokenString string) (*identityClaims, error) {
	claims := &identityClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return app.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func (app *application) upsertUser(ctx context.Context, claims *identityClaims) (int64, error) {
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	var userID int64
	err := app.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO users (external_id, display_name, email, is_coach)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET display_name = excluded.display_name,
		                                        email        = excluded.email,
		                                        is_coach     = excluded.is_coach
		RETURNING id`,
		claims.Subject, name, claims.Email, claims.Coach).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("upsert user %q: %w", claims.Subject, err)
	}
	return userID, nil
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionManager.Destroy(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, nil)
}

func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
