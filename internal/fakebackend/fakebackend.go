// Package fakebackend is an in-memory stand-in for the hosted resume
// backend, implementing the HTTP contract the gateway consumes. It backs
// integration tests and local development; it is not a production
// identity provider.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/resumelens/resumelens/internal/api"
)

type account struct {
	user         api.User
	passwordHash []byte
	onboarded    bool
}

// Backend holds the in-memory account state
type Backend struct {
	mu      sync.Mutex
	byEmail map[string]*account
	byID    map[string]*account
	revoked map[string]bool
	secret  []byte
}

// New creates an empty fake backend signing tokens with secret
func New(secret string) *Backend {
	return &Backend{
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
		revoked: make(map[string]bool),
		secret:  []byte(secret),
	}
}

// Seed registers an account directly, bypassing the HTTP surface
func (b *Backend) Seed(email, password, fullName string) api.User {
	user, err := b.createAccount(email, password, fullName)
	if err != nil {
		panic(err)
	}
	return user
}

// SetOnboarded flips the onboarding-completed flag for a user
func (b *Backend) SetOnboarded(userID string, done bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acct, ok := b.byID[userID]; ok {
		acct.onboarded = done
	}
}

// IssueToken mints a valid bearer token for a user
func (b *Backend) IssueToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (b *Backend) createAccount(email, password, fullName string) (api.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return api.User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byEmail[email]; exists {
		return api.User{}, fmt.Errorf("email already registered")
	}

	now := time.Now().UTC()
	acct := &account{
		user: api.User{
			ID:                 uuid.NewString(),
			Email:              email,
			FullName:           fullName,
			SubscriptionType:   "free",
			SubscriptionStatus: "active",
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		passwordHash: hash,
	}
	b.byEmail[email] = acct
	b.byID[acct.user.ID] = acct
	return acct.user, nil
}

func (b *Backend) authenticate(r *http.Request) (*account, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	b.mu.Lock()
	revoked := b.revoked[tokenString]
	b.mu.Unlock()
	if revoked {
		return nil, false
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.byID[claims.Subject]
	return acct, ok
}

// Handler returns the backend's HTTP surface
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.handleLogin)
	mux.HandleFunc("POST /api/auth/register", b.handleRegister)
	mux.HandleFunc("GET /api/auth/me", b.handleMe)
	mux.HandleFunc("POST /api/auth/logout", b.handleLogout)
	mux.HandleFunc("POST /api/auth/reset-password", b.handleResetPassword)
	mux.HandleFunc("GET /api/onboarding/status", b.handleOnboardingStatus)
	mux.HandleFunc("POST /api/resume/upload", b.handleUpload)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	acct, ok := b.byEmail[req.Email]
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": b.IssueToken(acct.user.ID),
		"user":         acct.user,
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := b.createAccount(req.Email, req.Password, req.FullName)
	if err != nil {
		writeDetail(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	b.revoked[token] = true
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The real backend sends an email; answering success is enough here
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"onboarding_completed": acct.onboarded})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeDetail(w, http.StatusBadRequest, "multipart form data required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	file.Close()

	writeJSON(w, http.StatusOK, map[string]string{
		"resume_id": uuid.NewString(),
		"filename":  header.Filename,
	})
}
