package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedhub/internal/authz"
	"wedhub/internal/utils"
)

var testSecret = []byte("test-secret")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	g := r.Group("/", Auth(testSecret))
	g.GET("/me", func(c *gin.Context) {
		a, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": a.UserID.String(), "role": a.Role})
	})
	g.GET("/admin", RequireRoles(authz.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, "wedhub", uuid.New(), role, ttl, time.Now())
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer not-a-jwt").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+token(t, authz.RoleCustomer, -time.Hour)).Code)

	w := do(r, "/me", "Bearer "+token(t, authz.RoleVendor, time.Minute))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"vendor"`)
}

func TestAuthRejectsForeignSecret(t *testing.T) {
	tok, err := utils.NewAccessToken([]byte("other"), "wedhub", uuid.New(), authz.RoleAdmin, time.Minute, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(newRouter(), "/me", "Bearer "+tok).Code)
}

func TestRequireRoles(t *testing.T) {
	r := newRouter()
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer "+token(t, authz.RoleCustomer, time.Minute)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", "Bearer "+token(t, authz.RoleAdmin, time.Minute)).Code)
}
