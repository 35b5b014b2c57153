package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civichero-be/apperr"
	"civichero-be/gate"
	"civichero-be/models"
	"civichero-be/session"
	authUtils "civichero-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubRestorer struct {
	sessions map[string]*session.Session
	err      error
}

func (s *stubRestorer) Restore(_ context.Context, id string) (*session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNoSession
	}
	copied := *sess
	return &copied, nil
}

func newSession(t *testing.T, r *stubRestorer, role models.ProfileType) string {
	t.Helper()
	sess := &session.Session{
		ID:        primitive.NewObjectID().Hex(),
		Profile:   models.Profile{ID: primitive.NewObjectID(), Name: "Test", Type: role},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	r.sessions[sess.ID] = sess
	token, err := authUtils.GenerateToken(testSecret, sess.ID, sess.Profile.ID.Hex(), string(role), sess.ExpiresAt)
	require.NoError(t, err)
	return token
}

func gatedRouter(r *stubRestorer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Authenticate(r, testSecret, zap.NewNop()))
	ok := func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": sess.Profile.ID.Hex(), "role": sess.Role()})
	}
	router.GET("/api/issues", RequireRole(models.NGO), ok)
	router.GET("/api/auth/me", RequireRole(gate.AnyRole), ok)
	router.GET("/citizen/dashboard", RequireRole(models.Citizen), ok)
	router.GET("/ngo/dashboard", RequireRole(models.NGO), ok)
	return router
}

func do(router http.Handler, path, token string, asCookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		if asCookie {
			req.AddCookie(&http.Cookie{Name: AuthCookie, Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireRole_UnauthenticatedGoesToLogin(t *testing.T) {
	router := gatedRouter(&stubRestorer{sessions: map[string]*session.Session{}})

	for _, path := range []string{"/citizen/dashboard", "/ngo/dashboard"} {
		rec := do(router, path, "", false)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, gate.LoginPath, rec.Header().Get("Location"), path)
	}

	rec := do(router, "/api/issues", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, gate.LoginPath, jsonBody(t, rec)["redirect"])

	rec = do(router, "/api/auth/me", "not-a-jwt", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_WrongRoleGoesToOwnDashboard(t *testing.T) {
	restorer := &stubRestorer{sessions: map[string]*session.Session{}}
	router := gatedRouter(restorer)
	citizen := newSession(t, restorer, models.Citizen)
	ngo := newSession(t, restorer, models.NGO)

	rec := do(router, "/ngo/dashboard", citizen, true)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/citizen/dashboard", rec.Header().Get("Location"))

	rec = do(router, "/citizen/dashboard", ngo, true)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/ngo/dashboard", rec.Header().Get("Location"))

	rec = do(router, "/api/issues", citizen, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/citizen/dashboard", jsonBody(t, rec)["redirect"])
}

func TestRequireRole_MatchingRoleRenders(t *testing.T) {
	restorer := &stubRestorer{sessions: map[string]*session.Session{}}
	router := gatedRouter(restorer)
	ngo := newSession(t, restorer, models.NGO)
	citizen := newSession(t, restorer, models.Citizen)

	assert.Equal(t, http.StatusOK, do(router, "/ngo/dashboard", ngo, true).Code)
	assert.Equal(t, http.StatusOK, do(router, "/api/issues", ngo, false).Code)
	assert.Equal(t, http.StatusOK, do(router, "/citizen/dashboard", citizen, false).Code)

	rec := do(router, "/api/auth/me", citizen, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "citizen", jsonBody(t, rec)["role"])
}

func TestRequireRole_LoggedOutSessionIsUnauthenticated(t *testing.T) {
	restorer := &stubRestorer{sessions: map[string]*session.Session{}}
	router := gatedRouter(restorer)
	token := newSession(t, restorer, models.NGO)
	restorer.sessions = map[string]*session.Session{}

	rec := do(router, "/ngo/dashboard", token, true)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, gate.LoginPath, rec.Header().Get("Location"))
}

func TestRequireRole_CacheDownIsPlaceholder(t *testing.T) {
	restorer := &stubRestorer{sessions: map[string]*session.Session{}}
	router := gatedRouter(restorer)
	token := newSession(t, restorer, models.NGO)
	restorer.err = apperr.Network("Session store unavailable", errors.New("dial tcp: refused"))

	rec := do(router, "/ngo/dashboard", token, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestAuthenticate_RejectsTokenForOtherUser(t *testing.T) {
	restorer := &stubRestorer{sessions: map[string]*session.Session{}}
	router := gatedRouter(restorer)
	_ = newSession(t, restorer, models.NGO)

	var sid string
	for id := range restorer.sessions {
		sid = id
	}
	forged, err := authUtils.GenerateToken(testSecret, sid, primitive.NewObjectID().Hex(), "ngo", time.Now().Add(time.Hour))
	require.NoError(t, err)

	rec := do(router, "/api/issues", forged, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
