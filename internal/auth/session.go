package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/jw6ventures/studycal/internal/calendar"
)

const sessionCookieName = "studycal_session"

// SessionManager reads and writes the signed session cookie.
type SessionManager struct {
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
	ttl        time.Duration
	now        func() time.Time
}

type sessionValue struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Expires int64  `json:"exp"`
}

func NewSessionManager(secret, baseURL string) *SessionManager {
	hash := sha256.Sum256([]byte(secret))
	hashKey := hash[:]

	// Derive an AES-256 sized block key to avoid invalid key length errors.
	blockKey := hash[:]
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(86400 * 7)
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(baseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cookieName: sessionCookieName,
		codec:      sc,
		secure:     secure,
		ttl:        24 * time.Hour,
		now:        time.Now,
	}
}

// Issue sets the session cookie for user.
func (m *SessionManager) Issue(w http.ResponseWriter, user calendar.User) error {
	expires := m.now().Add(m.ttl)
	encoded, err := m.codec.Encode(m.cookieName, sessionValue{
		UserID:  user.ID,
		Name:    user.Name,
		Expires: expires.Unix(),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    m.cookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		Secure:  m.secure,
	})
}

// CurrentUser extracts the user from the request's session cookie if present.
func (m *SessionManager) CurrentUser(r *http.Request) (calendar.User, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return calendar.User{}, false
	}

	var value sessionValue
	if err := m.codec.Decode(m.cookieName, c.Value, &value); err != nil {
		return calendar.User{}, false
	}
	if value.UserID == "" || time.Unix(value.Expires, 0).Before(m.now()) {
		return calendar.User{}, false
	}
	return calendar.User{ID: value.UserID, Name: value.Name}, true
}
