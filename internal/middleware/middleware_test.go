package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	"github.com/noah-isme/lesson-scheduler-api/pkg/logger"
)

const testSecret = "middleware-secret"

func issueToken(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	identity := service.NewIdentityService(nil, service.IdentityConfig{Secret: testSecret}, nil)
	router := gin.New()
	group := router.Group("/", JWT(identity))
	if len(roles) > 0 {
		group.Use(RequireRoles(roles...))
	}
	group.GET("/whoami", func(c *gin.Context) {
		actor := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ActorID(), "role": actor.ActorRole(), "log_id": c.GetString(logger.ActorIDKey)})
	})
	return router
}

func TestJWTResolvesActor(t *testing.T) {
	router := newProtectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "teacher-1", models.RoleTeacher))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"teacher-1","role":"TEACHER","log_id":"teacher-1"}`, rec.Body.String())
}

func TestJWTRejectsBadCredentials(t *testing.T) {
	router := newProtectedRouter()
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty token":    "Bearer ",
		"garbage token":  "Bearer abc.def.ghi",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), "UNAUTHORIZED"))
		})
	}
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	router := newProtectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "p-1", models.UserRole("PARENT")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	router := newProtectedRouter(models.RoleAdmin, models.RoleSuperAdmin)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "teacher-1", models.RoleTeacher))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "root", models.RoleSuperAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, ActorFromContext(c))
}

func TestMetricsMiddlewareServesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/lessons/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lessons/l-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `path="/lessons/:id"`)
	assert.NotContains(t, body, "l-1")
}
