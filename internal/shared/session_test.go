package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "mirakl_auth", testSigningKey, 24*time.Hour, false), mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSessionRoundTripKeepsIdentity(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusUnauthenticated, sess.Status)
	assert.False(t, sess.Authenticated())

	sess.Authenticate(Identity{Username: "jdoe", DisplayName: "Jane Doe", Email: "jane@example.com"})
	sess.Set("detail_page", "3")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(sessionCookie(t, rec, "mirakl_auth"))
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	assert.Equal(t, "Jane Doe", loaded.Identity.DisplayName)
	assert.Equal(t, "3", loaded.Get("detail_page"))
}

func TestAuthenticateRotatesSessionID(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	anonymousID := sess.ID
	require.True(t, mr.Exists("session:"+anonymousID))

	login := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	login.AddCookie(sessionCookie(t, rec, "mirakl_auth"))
	sess, err = sm.Load(ctx, login)
	require.NoError(t, err)
	require.Equal(t, anonymousID, sess.ID)

	sess.Authenticate(Identity{Username: "jdoe", DisplayName: "Jane Doe"})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), login, sess))

	assert.NotEqual(t, anonymousID, sess.ID)
	assert.False(t, mr.Exists("session:"+anonymousID))
	assert.True(t, mr.Exists("session:"+sess.ID))
}

func TestForgedCookieYieldsFreshSession(t *testing.T) {
	sm, _ := newTestManager(t)
	other := NewSessionManager(sm.client, "mirakl_auth", "another-signing-key-entirely!!", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := other.Load(ctx, req)
	require.NoError(t, err)
	sess.Authenticate(Identity{Username: "mallory"})
	rec := httptest.NewRecorder()
	require.NoError(t, other.Commit(ctx, rec, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(sessionCookie(t, rec, "mirakl_auth"))
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated())
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestExpiredSessionIsDiscarded(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Now()
	sm.now = func() time.Time { return start }

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.Authenticate(Identity{Username: "jdoe"})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	sm.now = func() time.Time { return start.Add(25 * time.Hour) }
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(sessionCookie(t, rec, "mirakl_auth"))
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated())
}

func TestDestroyClearsCookieAndStore(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.Authenticate(Identity{Username: "jdoe"})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.Equal(t, -1, sessionCookie(t, rec, "mirakl_auth").MaxAge)
}

func TestRejectClearsIdentity(t *testing.T) {
	sm, _ := newTestManager(t)
	sess := sm.newSession()
	sess.Authenticate(Identity{Username: "jdoe"})
	sess.Reject()
	assert.Equal(t, StatusRejected, sess.Status)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, sess.Identity.Username)
}

func TestFlashesSurviveUntilPopped(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Signed out"})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	next.AddCookie(sessionCookie(t, rec, "mirakl_auth"))
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Signed out", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newTestManager(t)
	csrf := NewCSRFManager("csrf-secret")
	sess := sm.newSession()

	assert.ErrorIs(t, csrf.VerifyToken(sess, "anything"), ErrCSRFTokenMissing)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	assert.NoError(t, csrf.VerifyToken(sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(sess, token+"x"), ErrCSRFTokenMismatch)

	rotated := csrf.RotateToken(sess)
	assert.NotEqual(t, token, rotated)
	assert.ErrorIs(t, csrf.VerifyToken(sess, token), ErrCSRFTokenMismatch)
}
