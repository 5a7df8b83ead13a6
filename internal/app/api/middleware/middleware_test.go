package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/subpanel/pkg/logctx"
)

const secret = "test-secret"

func newAuthEngine(admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log))
	r.GET("/me", AuthMiddleware(secret, admin, log), func(c *gin.Context) {
		claims := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID)
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userToken, err := SignToken(secret, Claims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	adminToken, err := SignToken(secret, Claims{UserID: "admin", IsAdmin: true}, time.Hour)
	require.NoError(t, err)
	foreignToken, err := SignToken("other-secret", Claims{UserID: "u1", IsAdmin: true}, time.Hour)
	require.NoError(t, err)

	user := newAuthEngine(false)
	w := doGet(user, userToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", w.Body.String())

	require.Equal(t, http.StatusUnauthorized, doGet(user, "").Code)
	require.Equal(t, http.StatusUnauthorized, doGet(user, foreignToken).Code)
	require.Equal(t, http.StatusUnauthorized, doGet(user, "not-a-jwt").Code)

	admin := newAuthEngine(true)
	require.Equal(t, http.StatusForbidden, doGet(admin, userToken).Code)
	w = doGet(admin, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "admin", w.Body.String())
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := SignToken(secret, Claims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.False(t, claims.IsAdmin)

	var expired Claims
	expired.UserID = "u1"
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	token, err = SignToken(secret, expired, 0)
	require.NoError(t, err)
	_, err = ParseToken(secret, token)
	require.Error(t, err)

	token, err = SignToken(secret, Claims{}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(secret, token)
	require.Error(t, err)
}

func TestTraceAndAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AccessLogMiddleware(log))
	r.GET("/ping", func(c *gin.Context) {
		require.Equal(t, "trace-1", logctx.TraceID(c.Request.Context()))
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "trace-1", w.Header().Get(HeaderRequestID))

	entries := logs.FilterMessage("http_access").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "trace-1", fields["trace_id"])
	require.Equal(t, "/ping", fields["path"])
	require.EqualValues(t, http.StatusOK, fields["status"])
}

func TestTraceGeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Len(t, w.Header().Get(HeaderRequestID), 36)
}
