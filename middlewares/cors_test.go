package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.GET("/api/auth/me", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"name": "Jane"}) })
	return r
}

func getWithOrigin(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORS_WithoutNamedOriginsNeverSharesCredentials(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}, {"https://app.example", "*"}} {
		rec := getWithOrigin(corsRouter(origins), "https://evil.example")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), "origins %v", origins)
	}
}

func TestCORS_NamedOrigins(t *testing.T) {
	r := corsRouter([]string{"https://app.example"})

	rec := getWithOrigin(r, "https://app.example")
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = getWithOrigin(r, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestExplicitOrigins(t *testing.T) {
	assert.Nil(t, ExplicitOrigins(nil))
	assert.Nil(t, ExplicitOrigins([]string{"*"}))
	assert.Equal(t, []string{"https://a.example"}, ExplicitOrigins([]string{"https://a.example"}))
}
