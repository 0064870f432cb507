// Package sampleapp is a tiny web application with a login route, used to exercise the
// testserver harness end to end. It has exactly one user, with fixed credentials.
package sampleapp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/henryotoole/hutils/framework"
)

const (
	UserID    = 1
	UserEmail = "test_email"
	UserPass  = "test_pass"

	// SessionCookieName is the cookie that carries the signed session token.
	SessionCookieName = "session"

	sessionLifetime = time.Hour * 24
)

// DefaultSecretKey signs session tokens when no other key is given.
var DefaultSecretKey = []byte("aleksandr_solzhenitsyn")

// User is the logged-in user of a request.
type User struct {
	ID int
}

func (u User) IsAuthenticated() bool {
	return u.ID == UserID
}

// App is an http.Handler serving the sample routes:
//
//	/login_login  checks the "email" and "password" parameters and starts a session
//	/test_route   returns {"key": "val"} if "test_param" is "hello", otherwise 404
//	/test_login   returns {} for a logged-in user, otherwise 401
//
// Every route accepts GET and POST; parameters may come from the query string or the body.
type App struct {
	secretKey []byte
	mux       *http.ServeMux
	logger    framework.Logger
}

// New creates the app. A nil secretKey means DefaultSecretKey.
func New(secretKey []byte, logger framework.Logger) *App {
	if secretKey == nil {
		secretKey = DefaultSecretKey
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	a := &App{
		secretKey: secretKey,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	a.mux.Handle("/login_login", getOrPost(a.loginLogin))
	a.mux.Handle("/test_route", getOrPost(a.testRoute))
	a.mux.Handle("/test_login", getOrPost(a.loginRequired(a.testLogin)))
	return a
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.logger.Printf("%s %s", r.Method, r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *App) loginLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email != UserEmail || password != UserPass {
		writeText(w, http.StatusForbidden, "Bad login credentials")
		return
	}
	token, err := a.newSessionToken(User{ID: UserID})
	if err != nil {
		a.logger.Printf("Could not sign session token: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

func (a *App) testRoute(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("test_param") == "hello" {
		writeJSON(w, http.StatusOK, map[string]string{"key": "val"})
		return
	}
	writeText(w, http.StatusNotFound, "did not say hello")
}

func (a *App) testLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{})
}

// loginRequired rejects requests that do not carry a valid session for an authenticated user.
func (a *App) loginRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.CurrentUser(r)
		if !ok || !user.IsAuthenticated() {
			writeText(w, http.StatusUnauthorized, "Login required")
			return
		}
		next(w, r)
	}
}

// CurrentUser returns the user whose session cookie accompanies the request, if any.
func (a *App) CurrentUser(r *http.Request) (User, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return User{}, false
	}
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		a.logger.Printf("Rejected session token: %s", err)
		return User{}, false
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return User{}, false
	}
	return User{ID: id}, true
}

func (a *App) newSessionToken(user User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.Itoa(user.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
	})
	return token.SignedString(a.secretKey)
}

func getOrPost(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
