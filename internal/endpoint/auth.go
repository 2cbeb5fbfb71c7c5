package endpoint

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuth is a http.Handler wrapper that handles Basic Authorization.
// It supports only one pair of username and bcrypt hashed password.
type BasicAuth struct {
	Handler      http.Handler
	Username     string
	PasswordHash []byte
}

// WithBasicAuth wraps http.Handler with a BasicAuth.
func WithBasicAuth(handler http.Handler, username, passwordHash string) http.Handler {
	return BasicAuth{
		Handler:      handler,
		Username:     username,
		PasswordHash: []byte(passwordHash),
	}
}

func (a BasicAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()

	// compare both regardless of the username, to keep timing constant
	passwordErr := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password))
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1

	if !ok || !userOK || passwordErr != nil {
		w.Header().Add("WWW-Authenticate", `Basic realm="selfmon"`)
		writeJSON(w, http.StatusUnauthorized, forceCheckResponse{
			Success: false,
			Message: "unauthorized",
		})
		return
	}

	a.Handler.ServeHTTP(w, r)
}
