// Package auth validates the caller identity tokens every API request
// carries.
package auth

import (
	"log"
	"net/http"
	"strings"
)

// Validator checks bearer tokens against the configured set. With no tokens
// configured the validator lets everything through, which is only acceptable
// for local development; startup logs a warning in that case.
type Validator struct {
	tokens map[string]bool
	open   bool
}

// NewValidator creates a validator from the configured token list
func NewValidator(tokens []string) *Validator {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = true
		}
	}

	open := len(set) == 0
	if open {
		log.Println("⚠️  No API tokens configured, authentication disabled")
	}
	return &Validator{tokens: set, open: open}
}

// Valid reports whether the given bearer token is accepted.
func (v *Validator) Valid(token string) bool {
	if v.open {
		return true
	}
	return v.tokens[token]
}

// Middleware rejects requests without a valid Authorization: Bearer token.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.open {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !v.tokens[strings.TrimSpace(token)] {
			// WebSocket clients can't always set headers; accept the
			// token as a query parameter there
			if t := r.URL.Query().Get("token"); t != "" && v.tokens[t] {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
