package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dcinv/internal/store"
)

const tokenTTL = 24 * time.Hour

type authClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (a *API) issueToken(u *store.User) (string, error) {
	claims := authClaims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(a.JWTSecret))
}

func (a *API) parseToken(raw string) (*authClaims, error) {
	var claims authClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := a.Store.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, u)
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := a.Store.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSON(w, 401, map[string]any{"error": "invalid credentials"})
		return
	}
	if a.JWTSecret == "" {
		writeJSON(w, 200, map[string]any{"ok": true, "user": u})
		return
	}
	tok, err := a.issueToken(u)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "token": tok, "user": u})
}

// Logout exists for client symmetry; tokens are stateless and simply expire.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true})
}
