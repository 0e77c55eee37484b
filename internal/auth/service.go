package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/calendar"
)

// UserRecorder persists identities seen on authenticated requests.
type UserRecorder interface {
	Upsert(ctx context.Context, user calendar.User) error
}

// Service resolves the caller's identity from a bearer token or the session
// cookie. It does not run a login flow; tokens are issued elsewhere.
type Service struct {
	sessions *SessionManager
	tokens   *Tokens
	users    UserRecorder
	log      logrus.FieldLogger

	now     func() time.Time
	mu      sync.Mutex
	seen    map[string]time.Time
	refresh time.Duration
}

func NewService(sessions *SessionManager, tokens *Tokens, users UserRecorder, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		sessions: sessions,
		tokens:   tokens,
		users:    users,
		log:      log,
		now:      time.Now,
		seen:     make(map[string]time.Time),
		refresh:  time.Hour,
	}
}

// Authenticate returns the identity attached to r, if any.
func (s *Service) Authenticate(r *http.Request) (calendar.User, Method, error) {
	if raw, ok := bearerToken(r); ok {
		user, err := s.tokens.Verify(raw)
		if err != nil {
			return calendar.User{}, "", err
		}
		return user, MethodBearer, nil
	}
	if user, ok := s.sessions.CurrentUser(r); ok {
		return user, MethodCookie, nil
	}
	return calendar.User{}, "", ErrInvalidToken
}

// RequireUser rejects unauthenticated requests with 401 and stores the user
// in the request context.
func (s *Service) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, method, err := s.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="studycal"`)
			writeUnauthorized(w)
			return
		}
		if err := s.record(r.Context(), user); err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Error("failed to record user")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, method)))
	})
}

// StartSession exchanges a valid bearer token for a session cookie.
func (s *Service) StartSession(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	user, err := s.tokens.Verify(raw)
	if err != nil {
		s.log.WithError(err).Debug("rejected session exchange")
		writeUnauthorized(w)
		return
	}
	if err := s.record(r.Context(), user); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("failed to record user")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Issue(w, user); err != nil {
		s.log.WithError(err).Error("failed to issue session cookie")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndSession clears the session cookie.
func (s *Service) EndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// record upserts user at most once per refresh interval. Entries older than
// the interval are pruned whenever a user is recorded.
func (s *Service) record(ctx context.Context, user calendar.User) error {
	if s.users == nil {
		return nil
	}
	now := s.now()
	s.mu.Lock()
	last, ok := s.seen[user.ID]
	s.mu.Unlock()
	if ok && now.Sub(last) < s.refresh {
		return nil
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return err
	}
	s.mu.Lock()
	for id, at := range s.seen {
		if now.Sub(at) >= s.refresh {
			delete(s.seen, id)
		}
	}
	s.seen[user.ID] = now
	s.mu.Unlock()
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
