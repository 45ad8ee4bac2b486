package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureIdentity(t *testing.T, req *http.Request) (visitor, session string, rec *httptest.ResponseRecorder) {
	t.Helper()
	rec = httptest.NewRecorder()
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		visitor = VisitorIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))
	h.ServeHTTP(rec, req)
	return visitor, session, rec
}

func TestMiddlewareIssuesVisitorCookie(t *testing.T) {
	visitor, session, rec := captureIdentity(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	assert.True(t, isValidVisitorID(visitor), visitor)
	assert.Equal(t, DefaultSessionIDValue, session)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookieName, cookies[0].Name)
	assert.Equal(t, visitor, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	id := "v_" + strings.Repeat("a", 32)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: id})
	req.Header.Set(SessionHeaderName, "tab-1")

	visitor, session, _ := captureIdentity(t, req)
	assert.Equal(t, id, visitor)
	assert.Equal(t, "tab-1", session)
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: "../../etc/passwd"})

	visitor, _, _ := captureIdentity(t, req)
	assert.NotEqual(t, "../../etc/passwd", visitor)
	assert.True(t, isValidVisitorID(visitor))
}

func TestSessionIDFromQuery(t *testing.T) {
	_, session, _ := captureIdentity(t, httptest.NewRequest(http.MethodGet, "/api/ws?session_id=abc:1", nil))
	assert.Equal(t, "abc:1", session)
}

func TestMiddlewareSanitizesSessionHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set(SessionHeaderName, "bad id")

	_, session, _ := captureIdentity(t, req)
	assert.Equal(t, DefaultSessionIDValue, session)
}

func TestSanitizeSessionID(t *testing.T) {
	assert.Equal(t, DefaultSessionIDValue, sanitizeSessionID(""))
	assert.Equal(t, DefaultSessionIDValue, sanitizeSessionID("has space"))
	assert.Equal(t, DefaultSessionIDValue, sanitizeSessionID(strings.Repeat("x", 129)))
	assert.Equal(t, "ok-1.2_3", sanitizeSessionID(" ok-1.2_3 "))
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "v_1", "bad id")
	assert.Equal(t, "v_1", VisitorIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
	assert.Empty(t, VisitorIDFromContext(context.Background()))
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", IPFromRequest(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", IPFromRequest(req))
}
