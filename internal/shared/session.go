package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuthStatus is the authentication state carried by a session.
type AuthStatus string

const (
	// StatusUnauthenticated means no credentials have been submitted yet.
	StatusUnauthenticated AuthStatus = "unauthenticated"
	// StatusPending means a login form is being displayed and awaits submission.
	StatusPending AuthStatus = "pending"
	// StatusAuthenticated means the session holds a verified identity.
	StatusAuthenticated AuthStatus = "authenticated"
	// StatusRejected means the most recent credential submission failed.
	StatusRejected AuthStatus = "rejected"
)

// Identity describes the authenticated user.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager orchestrates signed-cookie sessions backed by Redis. The cookie
// carries an HS256 token whose sid claim points at the Redis payload.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	tokens     *jwtauth.JWTAuth
	now        func() time.Time
}

// Session holds per-request session data.
type Session struct {
	ID        string
	Status    AuthStatus
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time

	values     map[string]string
	flashes    []FlashMessage
	manager    *SessionManager
	previousID string
	isNew      bool
	dirty      bool
	destroyed  bool
}

type sessionPayload struct {
	Status    AuthStatus        `json:"status"`
	Identity  Identity          `json:"identity"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Values    map[string]string `json:"values"`
	Flashes   []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager. signingKey signs the cookie token
// and ttl bounds both the cookie and the stored payload.
func NewSessionManager(client *redis.Client, cookieName string, signingKey string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		tokens:     jwtauth.New("HS256", []byte(signingKey), nil),
		now:        time.Now,
	}
}

// Load loads or creates a new session for request. An expired, forged or unknown
// cookie yields a fresh unauthenticated session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	sid, subject, ok := sm.parseToken(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	if !stored.ExpiresAt.IsZero() && !sm.now().Before(stored.ExpiresAt) {
		return sm.newSession(), nil
	}
	if stored.Status == StatusAuthenticated && stored.Identity.Username != subject {
		return sm.newSession(), nil
	}

	sess := sm.newSession()
	sess.ID = sid
	sess.Status = stored.Status
	sess.Identity = stored.Identity
	sess.IssuedAt = stored.IssuedAt
	sess.ExpiresAt = stored.ExpiresAt
	if stored.Values != nil {
		sess.values = stored.Values
	}
	sess.flashes = stored.Flashes
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		for _, id := range []string{sess.ID, sess.previousID} {
			if id == "" {
				continue
			}
			if err := sm.client.Del(ctx, sm.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
		}
		http.SetCookie(w, sm.expiredCookie())
		return nil
	}

	if sess.previousID != "" {
		if err := sm.client.Del(ctx, sm.redisKey(sess.previousID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sess.previousID = ""
	}

	remaining := sess.ExpiresAt.Sub(sm.now())
	if remaining <= 0 {
		http.SetCookie(w, sm.expiredCookie())
		return nil
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sess.payload())
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, remaining).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	}

	token, err := sm.issueToken(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Session helpers

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Authenticated reports whether the session carries a verified identity.
func (s *Session) Authenticated() bool {
	return s != nil && !s.destroyed && s.Status == StatusAuthenticated && s.Identity.Username != ""
}

// MarkPending records that a login form has been presented.
func (s *Session) MarkPending() {
	if s.Status == StatusPending || s.Status == StatusAuthenticated {
		return
	}
	s.Status = StatusPending
	s.dirty = true
}

// Reject records a failed credential submission.
func (s *Session) Reject() {
	s.Status = StatusRejected
	s.Identity = Identity{}
	s.dirty = true
}

// Authenticate binds identity to the session, rotates its ID and restarts the
// expiry window.
func (s *Session) Authenticate(identity Identity) {
	now := time.Now()
	if s.manager != nil {
		now = s.manager.now()
		if !s.isNew {
			s.previousID = s.ID
		}
		s.ID = s.manager.generateSessionID()
		s.ExpiresAt = now.Add(s.manager.ttl)
	}
	s.Status = StatusAuthenticated
	s.Identity = identity
	s.IssuedAt = now
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (s *Session) payload() sessionPayload {
	return sessionPayload{
		Status:    s.Status,
		Identity:  s.Identity,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
		Values:    s.values,
		Flashes:   s.flashes,
	}
}

func (sm *SessionManager) newSession() *Session {
	now := sm.now()
	return &Session{
		ID:        sm.generateSessionID(),
		Status:    StatusUnauthenticated,
		IssuedAt:  now,
		ExpiresAt: now.Add(sm.ttl),
		values:    make(map[string]string),
		manager:   sm,
		isNew:     true,
		dirty:     true,
	}
}

func (sm *SessionManager) issueToken(sess *Session) (string, error) {
	claims := map[string]interface{}{
		"sid": sess.ID,
		"iat": sess.IssuedAt.Unix(),
		"exp": sess.ExpiresAt.Unix(),
	}
	if sess.Authenticated() {
		claims["sub"] = sess.Identity.Username
	}
	_, token, err := sm.tokens.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return token, nil
}

func (sm *SessionManager) parseToken(raw string) (sid string, subject string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	token, err := jwtauth.VerifyToken(sm.tokens, raw)
	if err != nil {
		return "", "", false
	}
	value, found := token.Get("sid")
	if !found {
		return "", "", false
	}
	sid, _ = value.(string)
	if sid == "" {
		return "", "", false
	}
	return sid, token.Subject(), true
}

func (sm *SessionManager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
