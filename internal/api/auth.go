package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/synermind/synermind/internal/models"
	"github.com/synermind/synermind/internal/util"
)

// tokenRegistry maps bearer tokens to user IDs. Tokens live for the process
// lifetime; a restart signs everyone out.
type tokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func newTokenRegistry() *tokenRegistry {
	return &tokenRegistry{tokens: make(map[string]string)}
}

func (r *tokenRegistry) Issue(userID string) (string, error) {
	token, err := util.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.tokens[token] = userID
	r.mu.Unlock()
	return token, nil
}

func (r *tokenRegistry) Lookup(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.tokens[token]
	return userID, ok
}

type signupRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signinResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func validateSignup(req *signupRequest) error {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return models.ErrEmptyUsername
	case len(req.Username) > models.MaxUsernameLength:
		return models.ErrUsernameTooLong
	case req.Password == "":
		return models.ErrEmptyPassword
	default:
		return nil
	}
}

func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.signupHandler: processing signup request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.signupHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validateSignup(&req); err != nil {
		slog.Warn("Server.signupHandler: validation failed", "error", err, "username", req.Username)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Server.signupHandler: failed to hash password", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create account"))
		return
	}

	user := models.User{
		ID:               uuid.NewString(),
		Username:         req.Username,
		PasswordHash:     string(hash),
		Email:            strings.TrimSpace(req.Email),
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
		CreatedAt:        s.now(),
	}
	if err := s.st.CreateUser(user); err != nil {
		if errors.Is(err, models.ErrUsernameTaken) {
			slog.Warn("Server.signupHandler: username taken", "username", req.Username)
			writeJSONResponse(w, http.StatusConflict, models.Error(models.ErrUsernameTaken.Error()))
			return
		}
		slog.Error("Server.signupHandler: failed to create user", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create account"))
		return
	}

	slog.Info("Server.signupHandler: account created", "user_id", user.ID, "username", user.Username)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Account created", &user))
}

func (s *Server) signinHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.signinHandler: processing signin request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.signinHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	user, err := s.st.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// Same response as a wrong password so usernames cannot be probed
			writeJSONResponse(w, http.StatusUnauthorized, models.Error(models.ErrInvalidCredentials.Error()))
			return
		}
		slog.Error("Server.signinHandler: failed to look up user", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to sign in"))
		return
	}

	now := s.now()
	if user.LockedUntil.After(now) {
		slog.Warn("Server.signinHandler: account locked", "user_id", user.ID, "locked_until", user.LockedUntil)
		writeJSONResponse(w, http.StatusLocked, models.Error(models.ErrAccountLocked.Error()))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.recordFailedSignin(user, now)
		writeJSONResponse(w, http.StatusUnauthorized, models.Error(models.ErrInvalidCredentials.Error()))
		return
	}

	// Successful signin clears any accumulated failures
	if user.FailedLogins > 0 || !user.LockedUntil.IsZero() {
		if err := s.st.UpdateUserLoginState(user.ID, 0, time.Time{}); err != nil {
			slog.Error("Server.signinHandler: failed to reset login state", "error", err, "user_id", user.ID)
		}
	}
	if err := s.st.AddLoginEvent(models.LoginEvent{ID: uuid.NewString(), UserID: user.ID, CreatedAt: now}); err != nil {
		slog.Error("Server.signinHandler: failed to record login event", "error", err, "user_id", user.ID)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		slog.Error("Server.signinHandler: failed to issue token", "error", err, "user_id", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to sign in"))
		return
	}

	slog.Info("Server.signinHandler: signed in", "user_id", user.ID, "username", user.Username)
	writeJSONResponse(w, http.StatusOK, models.Success(signinResponse{Token: token, User: user}))
}

// recordFailedSignin bumps the failure counter and locks the account once it
// crosses the threshold.
func (s *Server) recordFailedSignin(user *models.User, now time.Time) {
	failures := user.FailedLogins + 1
	lockedUntil := user.LockedUntil
	if failures >= models.MaxLoginFailures {
		lockedUntil = now.Add(models.LoginLockoutDuration)
		slog.Warn("Server.recordFailedSignin: account locked after repeated failures", "user_id", user.ID, "failures", failures, "locked_until", lockedUntil)
	}
	if err := s.st.UpdateUserLoginState(user.ID, failures, lockedUntil); err != nil {
		slog.Error("Server.recordFailedSignin: failed to update login state", "error", err, "user_id", user.ID)
	}
}

// authenticate resolves the bearer token on a request to its user. A nil
// user means the response has already been written.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) *models.User {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Missing bearer token"))
		return nil
	}
	userID, ok := s.tokens.Lookup(token)
	if !ok {
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid or expired token"))
		return nil
	}
	user, err := s.st.GetUserByID(userID)
	if err != nil {
		slog.Error("Server.authenticate: failed to load user for token", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid or expired token"))
		return nil
	}
	return user
}
