// Package main runs a small Contacts API slice wired through contactguard.
//
// With SECRET_KEY_* set in the environment (or a .env file) it connects
// to the configured Redis; without them it starts an embedded miniredis
// with throwaway dev secrets so the demo is self-contained.
//
// Endpoints:
//
//	POST /register          — JSON {"email":"...", "password":"..."}; prints a verify link token
//	POST /verify            — JSON {"token":"..."}; confirms the email token
//	POST /login             — JSON {"email":"...", "password":"..."}; returns a token pair
//	POST /refresh           — JSON {"refresh_token":"..."}; rotates the pair
//	POST /logout            — JSON {"refresh_token":"..."}; revokes it
//	GET  /contacts/upcoming — guarded + rate limited; upcoming birthdays for the caller
//	POST /contacts          — guarded; adds a contact and invalidates the cache
//
// Run:
//
//	go run ./cmd/contactguard-demo
//
// Then:
//
//	curl -X POST localhost:8080/register \
//	  -H 'Content-Type: application/json' \
//	  -d '{"email":"alice@example.com","password":"correct-horse"}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	contactguard "github.com/okhrim/contactguard"
	"github.com/okhrim/contactguard/cache"
	"github.com/okhrim/contactguard/internal/logging"
	"github.com/okhrim/contactguard/middleware"
	"github.com/okhrim/contactguard/password"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	cfg, opts, err := contactguard.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("environment config unavailable, using embedded dev setup", "error", err)

		mr, merr := miniredis.Run()
		if merr != nil {
			logger.Error("embedded redis failed", "error", merr)
			os.Exit(1)
		}
		defer mr.Close()

		cfg = contactguard.DefaultConfig()
		cfg.Token.AccessSecret = []byte("dev-only-access-secret")
		cfg.Token.RefreshSecret = []byte("dev-only-refresh-secret")
		cfg.Token.EmailSecret = []byte("dev-only-email-secret")
		opts = &redis.Options{Addr: mr.Addr()}
	}

	rdb := redis.NewClient(opts)
	defer rdb.Close()

	users := newUserStore()
	contacts := newContactStore()

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		logger.Error("argon2 init", "error", err)
		os.Exit(1)
	}

	engine, err := contactguard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCalendarSource(contacts).
		WithAuditSink(contactguard.NewJSONWriterSink(os.Stdout)).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Error("engine build", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	app := &server{engine: engine, users: users, contacts: contacts, hasher: hasher}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", app.register)
	mux.HandleFunc("POST /verify", app.verify)
	mux.HandleFunc("POST /login", app.login)
	mux.HandleFunc("POST /refresh", app.refresh)
	mux.HandleFunc("POST /logout", app.logout)

	guard := middleware.Guard(engine)
	limited := middleware.RateLimit(engine, "contacts")
	mux.Handle("GET /contacts/upcoming", limited(guard(http.HandlerFunc(app.upcoming))))
	mux.Handle("POST /contacts", guard(http.HandlerFunc(app.addContact)))

	logger.Info("listening", "addr", ":8080")
	if err := http.ListenAndServe(":8080", mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type server struct {
	engine   *contactguard.Engine
	users    *userStore
	contacts *contactStore
	hasher   *password.Hasher
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	hash, err := s.hasher.Hash(body.Password)
	if err != nil {
		http.Error(w, "weak password", http.StatusBadRequest)
		return
	}
	if err := s.users.create(body.Email, hash); err != nil {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}

	// A real deployment mails this token inside a verification link.
	verifyToken, err := s.engine.IssueEmailToken(r.Context(), body.Email)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"verify_token": verifyToken})
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	email, err := s.engine.ConfirmEmailToken(r.Context(), body.Token)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.users.markVerified(email)

	writeJSON(w, http.StatusOK, map[string]string{"email": email, "status": "verified"})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	record, ok := s.users.get(body.Email)
	if !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	match, err := s.hasher.Verify(body.Password, record.passwordHash)
	if err != nil || !match {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !record.verified {
		http.Error(w, "email not verified", http.StatusForbidden)
		return
	}

	pair, err := s.engine.IssuePair(r.Context(), body.Email)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	pair, err := s.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.engine.Logout(r.Context(), body.RefreshToken); err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) upcoming(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	matches, err := s.engine.UpcomingDates(r.Context(), principal)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []cache.Match{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"upcoming": matches})
}

func (s *server) addContact(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Name     string `json:"name"`
		Birthday string `json:"birthday"` // YYYY-MM-DD
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	born, err := time.Parse("2006-01-02", body.Birthday)
	if err != nil {
		http.Error(w, "birthday must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	id := s.contacts.add(principal, body.Name, born)

	// The cached upcoming list may now be stale.
	if err := s.engine.InvalidateUpcoming(r.Context(), principal); err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"contact_id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// In-memory stores. A real deployment backs these with a database.
// ---------------------------------------------------------------------------

type userRecord struct {
	passwordHash string
	verified     bool
}

type userStore struct {
	mu    sync.RWMutex
	users map[string]userRecord
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]userRecord)}
}

func (s *userStore) create(email, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return errors.New("already registered")
	}
	s.users[email] = userRecord{passwordHash: hash}
	return nil
}

func (s *userStore) markVerified(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[email]
	if !ok {
		return
	}
	record.verified = true
	s.users[email] = record
}

func (s *userStore) get(email string) (userRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[email]
	return record, ok
}

type contact struct {
	id    string
	name  string
	born  time.Time
	owner string
}

type contactStore struct {
	mu   sync.RWMutex
	next int
	byID map[string]contact
}

func newContactStore() *contactStore {
	return &contactStore{byID: make(map[string]contact)}
}

func (s *contactStore) add(owner, name string, born time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("c%d", s.next)
	s.byID[id] = contact{id: id, name: name, born: born, owner: owner}
	return id
}

// Upcoming scans the owner's contacts for birthdays inside the window.
func (s *contactStore) Upcoming(_ context.Context, principal string, windowDays int) ([]cache.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := time.Now()
	var matches []cache.Match
	for _, c := range s.byID {
		if c.owner != principal {
			continue
		}
		monthDay := cache.MonthDay{Month: c.born.Month(), Day: c.born.Day()}
		if !cache.InWindow(monthDay, today, windowDays) {
			continue
		}
		occurs := cache.NextOccurrence(monthDay, today)
		matches = append(matches, cache.Match{
			ContactID: c.id,
			Name:      c.name,
			Occurs:    occurs.Format("2006-01-02"),
			DaysOut:   cache.DaysUntil(monthDay, today),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DaysOut != matches[j].DaysOut {
			return matches[i].DaysOut < matches[j].DaysOut
		}
		return matches[i].ContactID < matches[j].ContactID
	})
	return matches, nil
}
